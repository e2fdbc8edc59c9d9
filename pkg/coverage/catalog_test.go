package coverage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracehound/pkg/breakpoint"
)

type fakeBackend struct{ trapSize int }

func (f fakeBackend) TrapSize() int { return f.trapSize }
func (f fakeBackend) Inject(pid int32, addr uint64) (breakpoint.Backup, error) {
	return breakpoint.Backup{}, nil
}
func (f fakeBackend) Restore(pid int32, addr uint64, backup breakpoint.Backup) error {
	return nil
}

func TestCatalogLoadAssignsModuleIDsToCoverageBreakpoints(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	data := buildDescriptor(mod("a"), fn(0x10), bb(0x0), bb(0x4), mod("b"), fn(0x20), bb(0x0))
	r := NewReader(bytes.NewReader(data), ReaderOptions{SingleShot: true})

	cat := NewCatalog(w, fakeBackend{trapSize: 1})
	cat.Load(r)

	require.Len(t, cat.byModule["a"], 2)
	require.Len(t, cat.byModule["b"], 1)
	assert.Equal(t, cat.byModule["a"][0].ModuleID, cat.byModule["a"][1].ModuleID)
	assert.NotEqual(t, cat.byModule["a"][0].ModuleID, cat.byModule["b"][0].ModuleID)
}

// TestCatalogArmingFlow exercises the rebase/arm/lookup/hit-record path that
// ArmForPid drives, without going through /proc/<pid>/maps (which needs a
// live process): it performs the same steps ArmForPid would given an
// already-known base.
func TestCatalogArmingFlow(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, nil)
	require.NoError(t, err)

	data := buildDescriptor(mod("a"), fn(0x10), bb(0x0))
	r := NewReader(bytes.NewReader(data), ReaderOptions{SingleShot: true})

	cat := NewCatalog(w, fakeBackend{trapSize: 1})
	cat.Load(r)

	bp := cat.byModule["a"][0]
	w.UpdateModuleBaseAddr("a", 0x400000)
	bp.Rebase(0x400000)
	require.NoError(t, bp.Arm(1, cat.backend))
	cat.byAddr[bp.Addr] = bp

	got, ok := cat.Lookup(0x400010)
	require.True(t, ok)
	assert.Same(t, bp, got)

	_, ok = cat.Lookup(0xdeadbeef)
	assert.False(t, ok)

	cat.OnHit(99)(bp)
	assert.Contains(t, buf.String(), "a")
}
