package coverage

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracehound/pkg/breakpoint"
)

// buildDescriptor assembles a coverage descriptor byte stream from a
// shorthand record list, matching §6's framing exactly.
type record struct {
	tag  byte
	name string // module records
	u64  uint64 // function records
	u32  uint32 // basic-block records
}

func mod(name string) record { return record{tag: tagModule, name: name} }
func fn(off uint64) record   { return record{tag: tagFunction, u64: off} }
func bb(off uint32) record   { return record{tag: tagBasicBlock, u32: off} }

func buildDescriptor(recs ...record) []byte {
	var buf bytes.Buffer
	for _, r := range recs {
		buf.WriteByte(r.tag)
		switch r.tag {
		case tagModule:
			buf.WriteString(r.name)
			buf.WriteByte(0)
		case tagFunction:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], r.u64)
			buf.Write(b[:])
		case tagBasicBlock:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], r.u32)
			buf.Write(b[:])
		}
	}
	return buf.Bytes()
}

// TestReaderScenarioS3 reproduces the spec's worked example: two modules,
// one function each, and the emitted placements in order.
func TestReaderScenarioS3(t *testing.T) {
	data := buildDescriptor(
		mod("a"), fn(0x1000), bb(0x0), bb(0x4),
		mod("b"), fn(0x2000), bb(0x8),
	)
	r := NewReader(bytes.NewReader(data), ReaderOptions{})

	var got [][2]any
	for {
		bp, ok := r.Next()
		if !ok {
			break
		}
		got = append(got, [2]any{bp.Module, bp.Offset})
	}

	require.Len(t, got, 3)
	assert.Equal(t, [2]any{"a", uint64(0x1000)}, got[0])
	assert.Equal(t, [2]any{"a", uint64(0x1004)}, got[1])
	assert.Equal(t, [2]any{"b", uint64(0x2008)}, got[2])
}

func TestReaderOnlyFunctionSuppressesBasicBlocks(t *testing.T) {
	data := buildDescriptor(
		mod("a"), fn(0x1000), bb(0x0), bb(0x4), fn(0x3000), bb(0x10),
	)
	r := NewReader(bytes.NewReader(data), ReaderOptions{OnlyFunction: true})

	var offsets []uint64
	for {
		bp, ok := r.Next()
		if !ok {
			break
		}
		offsets = append(offsets, bp.Offset)
	}
	assert.Equal(t, []uint64{0x1000, 0x3000}, offsets)
}

func TestReaderSingleShotTagsCoverageKind(t *testing.T) {
	data := buildDescriptor(mod("a"), fn(0x10), bb(0x0))
	r := NewReader(bytes.NewReader(data), ReaderOptions{SingleShot: true})

	bp, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, breakpoint.Coverage, bp.Kind)
}

func TestReaderModuleAtEOFWithNoBasicBlocksYieldsNothing(t *testing.T) {
	data := buildDescriptor(mod("a"))
	r := NewReader(bytes.NewReader(data), ReaderOptions{})

	_, ok := r.Next()
	assert.False(t, ok)
}

func TestReaderBasicBlockBeforeModuleIsMalformed(t *testing.T) {
	data := buildDescriptor(bb(0x4))
	r := NewReader(bytes.NewReader(data), ReaderOptions{})

	_, ok := r.Next()
	assert.False(t, ok)
}

func TestReaderBasicBlockBeforeFunctionIsMalformed(t *testing.T) {
	data := buildDescriptor(mod("a"), bb(0x4))
	r := NewReader(bytes.NewReader(data), ReaderOptions{})

	_, ok := r.Next()
	assert.False(t, ok)
}

func TestReaderTruncatedStreamEndsCleanly(t *testing.T) {
	data := buildDescriptor(mod("a"), fn(0x10))
	data = data[:len(data)-3] // truncate mid function-offset
	r := NewReader(bytes.NewReader(data), ReaderOptions{})

	_, ok := r.Next()
	assert.False(t, ok)
}

func TestReaderIsDeterministic(t *testing.T) {
	data := buildDescriptor(mod("a"), fn(0x1000), bb(0x0), bb(0x4))

	collect := func() [][2]any {
		r := NewReader(bytes.NewReader(data), ReaderOptions{})
		var got [][2]any
		for {
			bp, ok := r.Next()
			if !ok {
				break
			}
			got = append(got, [2]any{bp.Module, bp.Offset})
		}
		return got
	}

	assert.Equal(t, collect(), collect())
}
