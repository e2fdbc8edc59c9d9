package coverage

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEmitsHeaderImmediately(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	assert.Equal(t, traceMagic, string(buf.Bytes()[:len(traceMagic)]))
	assert.Equal(t, traceVersion, buf.Bytes()[len(traceMagic)])
}

func TestModuleIDIsStableAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	id1 := w.GetModuleID("libfoo.so")
	id2 := w.GetModuleID("libbar.so")
	id3 := w.GetModuleID("libfoo.so")

	assert.Equal(t, id1, id3)
	assert.NotEqual(t, id1, id2)
}

func TestUpdateModuleBaseAddrIsSetOnce(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	w.UpdateModuleBaseAddr("a.so", 0x400000)
	w.UpdateModuleBaseAddr("a.so", 0x999999) // must not overwrite

	id := w.GetModuleID("a.so")
	require.NoError(t, w.RecordCov(42, id, 0x400010))

	base := decodeModuleDefBase(t, buf.Bytes())
	assert.Equal(t, uint64(0x400000), base)
}

func TestRecordCovEmitsModuleDefBeforeFirstHit(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	id := w.GetModuleID("a.so")
	w.UpdateModuleBaseAddr("a.so", 0x1000)
	require.NoError(t, w.RecordCov(7, id, 0x1010))
	require.NoError(t, w.RecordCov(7, id, 0x1020)) // second hit, no repeated def

	body := buf.Bytes()[len(traceMagic)+1:]
	require.Equal(t, recModuleDef, body[0])

	defLen := 1 + 2 + 8 + 2 + len("a.so")
	require.Equal(t, recHit, body[defLen])

	secondHit := defLen + (1 + 4 + 2 + 8)
	require.Equal(t, recHit, body[secondHit])
}

func decodeModuleDefBase(t *testing.T, data []byte) uint64 {
	t.Helper()
	body := data[len(traceMagic)+1:]
	require.Equal(t, recModuleDef, body[0])
	return binary.LittleEndian.Uint64(body[3:11])
}
