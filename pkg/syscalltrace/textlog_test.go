package syscalltrace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tracehound/pkg/syscallid"
)

func TestStreamLoggerLogEnterFormatsArgsAndName(t *testing.T) {
	var buf bytes.Buffer
	l := NewStreamLogger(&buf)

	s := &State{Pid: 42, ID: syscallid.Write, NArgs: 3}
	s.Args[0], s.Args[1], s.Args[2] = 1, 0x7fff0000, 2
	l.LogEnter(s)

	out := buf.String()
	assert.True(t, strings.Contains(out, "write("))
	assert.True(t, strings.Contains(out, "42"))
	assert.True(t, strings.Contains(out, "0x1"))
}

func TestStreamLoggerLogEnterMarksBlocked(t *testing.T) {
	var buf bytes.Buffer
	l := NewStreamLogger(&buf)
	l.LogEnter(&State{Pid: 1, ID: syscallid.Open, Blocked: true})
	assert.Contains(t, buf.String(), "[blocked]")
}

func TestStreamLoggerLogExitShowsErrno(t *testing.T) {
	var buf bytes.Buffer
	l := NewStreamLogger(&buf)
	l.LogExit(&State{Pid: 1, ID: syscallid.Open, Ret: -2})
	assert.Contains(t, buf.String(), "errno 2")
}

func TestStreamLoggerLogExitShowsReturnValue(t *testing.T) {
	var buf bytes.Buffer
	l := NewStreamLogger(&buf)
	l.LogExit(&State{Pid: 1, ID: syscallid.Write, Ret: 2})
	assert.Contains(t, buf.String(), "= 2")
}
