package breakpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend lets us exercise the Breakpoint lifecycle without a real
// ptrace-stopped process; Hit()'s PC rewind goes through pkg/inferior
// directly and needs a live tracee, so it isn't covered here.
type fakeBackend struct {
	trapSize   int
	injectErr  error
	restoreErr error
	injected   map[uint64]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{trapSize: 1, injected: make(map[uint64]bool)}
}

func (f *fakeBackend) TrapSize() int { return f.trapSize }

func (f *fakeBackend) Inject(pid int32, addr uint64) (Backup, error) {
	if f.injectErr != nil {
		return Backup{}, f.injectErr
	}
	f.injected[addr] = true
	return Backup{bytes: []byte{0x90}}, nil
}

func (f *fakeBackend) Restore(pid int32, addr uint64, backup Backup) error {
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.injected[addr] = false
	return nil
}

func TestNewIsPendingAddr(t *testing.T) {
	bp := New("a.so", 0x1000, "bp1", Plain)
	assert.Equal(t, PendingAddr, bp.State)
	assert.Equal(t, uint64(0), bp.Addr)
}

func TestRebaseThenArm(t *testing.T) {
	bp := New("a.so", 0x10, "bp1", Plain)
	bp.Rebase(0x400000)
	require.Equal(t, uint64(0x400010), bp.Addr)

	backend := newFakeBackend()
	require.NoError(t, bp.Arm(1234, backend))
	assert.Equal(t, Enabled, bp.State)
	assert.True(t, backend.injected[0x400010])
}

func TestArmIsIdempotentWhenEnabled(t *testing.T) {
	bp := New("a.so", 0, "bp1", Plain)
	bp.Rebase(0x1000)
	backend := newFakeBackend()
	require.NoError(t, bp.Arm(1, backend))
	require.NoError(t, bp.Arm(1, backend)) // second Arm is a no-op, not a double-inject
	assert.Equal(t, Enabled, bp.State)
}

func TestArmFailureLeavesBreakpointUsable(t *testing.T) {
	bp := New("a.so", 0, "bp1", Plain)
	bp.Rebase(0x1000)
	backend := newFakeBackend()
	backend.injectErr = errors.New("EIO")

	err := bp.Arm(1, backend)
	require.Error(t, err)
	// Per §7, injection failure at a pending address leaves the breakpoint
	// pending for retry; State must not have advanced to Enabled.
	assert.NotEqual(t, Enabled, bp.State)
}

func TestDisableThenRearmRoundTrip(t *testing.T) {
	bp := New("a.so", 0, "bp1", Plain)
	bp.Rebase(0x2000)
	backend := newFakeBackend()
	require.NoError(t, bp.Arm(1, backend))

	require.NoError(t, bp.Disable(1, backend))
	assert.Equal(t, Disabled, bp.State)
	assert.False(t, backend.injected[0x2000])

	// Rearm requires having gone through the single-step window first.
	bp.State = SingleStepArmed
	require.NoError(t, bp.Rearm(1, backend))
	assert.Equal(t, Enabled, bp.State)
	assert.True(t, backend.injected[0x2000])
}

func TestRearmRequiresSingleStepArmedState(t *testing.T) {
	bp := New("a.so", 0, "bp1", Plain)
	bp.Rebase(0x2000)
	backend := newFakeBackend()
	require.NoError(t, bp.Arm(1, backend))

	err := bp.Rearm(1, backend)
	assert.Error(t, err, "Rearm should refuse to run from the Enabled state")
}

func TestStateStringCoversAllValues(t *testing.T) {
	for _, s := range []State{PendingAddr, Enabled, Disabled, SingleStepArmed} {
		assert.NotEqual(t, "unknown", s.String())
	}
	assert.Equal(t, "unknown", State(99).String())
}
