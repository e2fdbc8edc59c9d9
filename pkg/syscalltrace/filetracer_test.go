package syscalltrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracehound/pkg/syscallid"
)

type recordingFileTracer struct {
	claim           bool
	reads, closes   int
	lastCloseReturn int64
}

func (f *recordingFileTracer) OnFilter(s *State) bool { return f.claim }
func (f *recordingFileTracer) OnRead(s *State)        { f.reads++ }
func (f *recordingFileTracer) OnWrite(s *State)       {}
func (f *recordingFileTracer) OnIoctl(s *State)       {}
func (f *recordingFileTracer) OnClose(s *State) {
	f.closes++
	f.lastCloseReturn = s.Ret
}
func (f *recordingFileTracer) OnMmap(s *State)  {}
func (f *recordingFileTracer) OnMunmap(s *State) {}
func (f *recordingFileTracer) OnStats(s *State)  {}
func (f *recordingFileTracer) OnSeek(s *State)   {}
func (f *recordingFileTracer) OnMisc(s *State)   {}

func TestFileTracerBindsOnMatchingOpenExit(t *testing.T) {
	table := NewFileTracerTable()
	ft := &recordingFileTracer{claim: true}
	table.AddPending(ft)

	enter := &State{Pid: 1, ID: syscallid.Open}
	table.OnEnter(enter)

	exit := &State{Pid: 1, ID: syscallid.Open, Ret: 5}
	table.OnExit(exit)

	require.Contains(t, table.active, uint64(5))
	assert.Same(t, ft, table.active[5])
}

func TestFileTracerRoutesFollowupCallsByFd(t *testing.T) {
	table := NewFileTracerTable()
	ft := &recordingFileTracer{claim: true}
	table.AddPending(ft)
	table.OnEnter(&State{Pid: 1, ID: syscallid.Open})
	table.OnExit(&State{Pid: 1, ID: syscallid.Open, Ret: 5})

	readState := &State{Pid: 1, ID: syscallid.Read, NArgs: 3}
	readState.Args[0] = 5
	table.OnExit(readState)
	assert.Equal(t, 1, ft.reads)
}

func TestFileTracerOnCloseUnbindsFd(t *testing.T) {
	table := NewFileTracerTable()
	ft := &recordingFileTracer{claim: true}
	table.AddPending(ft)
	table.OnEnter(&State{Pid: 1, ID: syscallid.Open})
	table.OnExit(&State{Pid: 1, ID: syscallid.Open, Ret: 5})

	closeState := &State{Pid: 1, ID: syscallid.Close, NArgs: 1, Ret: 0}
	closeState.Args[0] = 5
	table.OnExit(closeState)

	assert.Equal(t, 1, ft.closes)
	_, ok := table.active[5]
	assert.False(t, ok)
}

func TestFileTracerNegativeReturnDoesNotBind(t *testing.T) {
	table := NewFileTracerTable()
	ft := &recordingFileTracer{claim: true}
	table.AddPending(ft)
	table.OnEnter(&State{Pid: 1, ID: syscallid.Open})
	table.OnExit(&State{Pid: 1, ID: syscallid.Open, Ret: -1})

	assert.Empty(t, table.active)
}
