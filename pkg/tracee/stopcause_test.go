package tracee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

// Raw wait-status encodings per the kernel convention WIFEXITED/
// WIFSIGNALED/WIFSTOPPED use (the low byte is 0 for exited, 0x7f for
// stopped, or the terminating signal otherwise; the stop signal and
// ptrace-event code live in the higher bytes).
func exitedStatus(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

func signaledStatus(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(sig)
}

func stoppedStatus(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(0x7f | (int(sig) << 8))
}

func groupStopStatus(event int) unix.WaitStatus {
	return unix.WaitStatus(0x7f | (int(unix.SIGTRAP) << 8) | (event << 16))
}

func TestDecodeStopExited(t *testing.T) {
	ev := DecodeStop(exitedStatus(7))
	assert.Equal(t, Exited, ev.Kind)
	assert.Equal(t, 7, ev.ExitStatus)
}

func TestDecodeStopSignaled(t *testing.T) {
	ev := DecodeStop(signaledStatus(unix.SIGKILL))
	assert.Equal(t, Signaled, ev.Kind)
	assert.Equal(t, unix.SIGKILL, ev.Signal)
}

func TestDecodeStopSyscallStop(t *testing.T) {
	ev := DecodeStop(stoppedStatus(syscallStopSignal))
	assert.Equal(t, SyscallStop, ev.Kind)
}

func TestDecodeStopGroupStopFork(t *testing.T) {
	ev := DecodeStop(groupStopStatus(unix.PTRACE_EVENT_FORK))
	assert.Equal(t, GroupStop, ev.Kind)
	assert.Equal(t, EventFork, ev.Event)
}

func TestDecodeStopGroupStopExec(t *testing.T) {
	ev := DecodeStop(groupStopStatus(unix.PTRACE_EVENT_EXEC))
	assert.Equal(t, GroupStop, ev.Kind)
	assert.Equal(t, EventExec, ev.Event)
}

func TestDecodeStopPlainSignalDelivery(t *testing.T) {
	ev := DecodeStop(stoppedStatus(unix.SIGUSR1))
	assert.Equal(t, SignalDeliveryStop, ev.Kind)
	assert.Equal(t, unix.SIGUSR1, ev.Signal)
}

func TestDecodeStopBareTrapWithoutEventIsSignalDelivery(t *testing.T) {
	ev := DecodeStop(stoppedStatus(unix.SIGTRAP))
	assert.Equal(t, SignalDeliveryStop, ev.Kind)
	assert.Equal(t, unix.SIGTRAP, ev.Signal)
}
