package tracee

import "golang.org/x/sys/unix"

// StopKind classifies a kernel wait-status into the categories the tracee
// state machine transitions on (§4.7).
type StopKind int

const (
	// Exited: WIFEXITED.
	Exited StopKind = iota
	// Signaled: WIFSIGNALED.
	Signaled
	// SyscallStop: WIFSTOPPED with signal SIGTRAP|0x80.
	SyscallStop
	// GroupStop: WIFSTOPPED with SIGTRAP and a PTRACE_EVENT_* code.
	GroupStop
	// SignalDeliveryStop: WIFSTOPPED with any other signal.
	SignalDeliveryStop
)

// GroupEvent is the PTRACE_EVENT_* code carried by a GroupStop.
type GroupEvent int

const (
	EventNone GroupEvent = iota
	EventClone
	EventFork
	EventVfork
	EventExec
	EventExit
)

// StopEvent is the decoded form of one wait4 status, carrying everything
// the state machine needs to decide its next transition (§4.7).
type StopEvent struct {
	Kind       StopKind
	Signal     unix.Signal
	Event      GroupEvent
	ExitStatus int
}

// syscallStopSignal is SIGTRAP with PTRACE_O_TRACESYSGOOD's high bit set,
// marking a syscall-stop as opposed to a plain SIGTRAP.
const syscallStopSignal = unix.SIGTRAP | 0x80

// DecodeStop classifies a raw wait4 status per §4.7's event taxonomy:
// exited and signaled statuses directly, and for stopped statuses the stop
// signal and ptrace trap cause.
func DecodeStop(ws unix.WaitStatus) StopEvent {
	switch {
	case ws.Exited():
		return StopEvent{Kind: Exited, ExitStatus: ws.ExitStatus()}
	case ws.Signaled():
		return StopEvent{Kind: Signaled, Signal: ws.Signal()}
	case ws.Stopped():
		sig := ws.StopSignal()
		if sig == syscallStopSignal {
			return StopEvent{Kind: SyscallStop}
		}
		if sig == unix.SIGTRAP {
			event := decodeGroupEvent(ws.TrapCause())
			if event != EventNone {
				return StopEvent{Kind: GroupStop, Event: event}
			}
			// A plain SIGTRAP not carrying a recognized ptrace event is
			// either a breakpoint trap or an unexpected signal-delivery
			// stop; the caller (Step) distinguishes the former by address
			// lookup. Report it as SignalDeliveryStop so callers that
			// don't recognize the trap still forward it per §9's open
			// question (a).
			return StopEvent{Kind: SignalDeliveryStop, Signal: sig}
		}
		return StopEvent{Kind: SignalDeliveryStop, Signal: sig}
	default:
		return StopEvent{Kind: SignalDeliveryStop}
	}
}

func decodeGroupEvent(cause int) GroupEvent {
	switch cause {
	case unix.PTRACE_EVENT_CLONE:
		return EventClone
	case unix.PTRACE_EVENT_FORK:
		return EventFork
	case unix.PTRACE_EVENT_VFORK:
		return EventVfork
	case unix.PTRACE_EVENT_EXEC:
		return EventExec
	case unix.PTRACE_EVENT_EXIT:
		return EventExit
	default:
		return EventNone
	}
}
