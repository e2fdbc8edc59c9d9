package coverage

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceReaderRoundTripsWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	w.UpdateModuleBaseAddr("libfoo.so", 0x5000)
	require.NoError(t, w.RecordCov(42, w.GetModuleID("libfoo.so"), 0x5010))
	require.NoError(t, w.Close())

	r, err := NewTraceReader(&buf)
	require.NoError(t, err)

	def, err := r.Next()
	require.NoError(t, err)
	assert.True(t, def.IsModuleDef)
	assert.Equal(t, "libfoo.so", def.ModuleName)
	assert.Equal(t, uint64(0x5000), def.BaseAddr)

	hit, err := r.Next()
	require.NoError(t, err)
	assert.False(t, hit.IsModuleDef)
	assert.EqualValues(t, 42, hit.Pid)
	assert.Equal(t, uint64(0x5010), hit.AbsAddr)
	assert.Equal(t, def.ModuleID, hit.ModuleID)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTraceReaderRejectsBadMagic(t *testing.T) {
	_, err := NewTraceReader(bytes.NewReader([]byte("NOPE\x01")))
	assert.Error(t, err)
}
