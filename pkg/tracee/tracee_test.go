package tracee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Step's INITIAL_STOP/RUNNING/SYSCALL transitions all call pkg/inferior
// against a live ptrace-stopped pid, so they aren't covered here (same
// limitation as pkg/breakpoint and pkg/syscalltrace). The exit paths below
// don't touch the inferior at all and are fully testable.

func TestStateStringCoversAllValues(t *testing.T) {
	for _, s := range []State{InitialStop, Running, Syscall, Exited} {
		assert.NotEqual(t, "unknown", s.String())
	}
	assert.Equal(t, "unknown", State(99).String())
}

func TestStepExitedRemovesSelf(t *testing.T) {
	tr := New(123, 0, nil, nil, nil)
	actions, err := tr.Step(StopEvent{Kind: Exited, ExitStatus: 0})
	require.NoError(t, err)
	assert.True(t, actions.RemoveSelf)
	assert.Equal(t, Exited, tr.State)
}

func TestStepSignaledRemovesSelf(t *testing.T) {
	// §9 open question (b): WIFSIGNALED is handled like WIFEXITED.
	tr := New(123, 0, nil, nil, nil)
	actions, err := tr.Step(StopEvent{Kind: Signaled})
	require.NoError(t, err)
	assert.True(t, actions.RemoveSelf)
	assert.Equal(t, Exited, tr.State)
}

func TestStepFromTerminalStateErrors(t *testing.T) {
	tr := New(123, 0, nil, nil, nil)
	tr.State = Exited
	_, err := tr.Step(StopEvent{Kind: SyscallStop})
	assert.Error(t, err)
}
