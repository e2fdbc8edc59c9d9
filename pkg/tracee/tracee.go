// Package tracee implements the per-process tracee state machine (C7): it
// decodes kernel stop causes, issues the correct ptrace resume primitive,
// and drives a single traced process through the syscall and breakpoint
// protocols (§4.7).
package tracee

import (
	"fmt"

	"golang.org/x/sys/unix"

	"tracehound/pkg/breakpoint"
	"tracehound/pkg/coverage"
	"tracehound/pkg/inferior"
	"tracehound/pkg/syscalltrace"
)

// State is the tracee's lifecycle position (§3 "Tracee", §4.7).
type State int

const (
	InitialStop State = iota
	Running
	Syscall
	Exited
)

func (s State) String() string {
	switch s {
	case InitialStop:
		return "initial-stop"
	case Running:
		return "running"
	case Syscall:
		return "syscall"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// DebugFlags is the per-tracee bitmask of which subsystems are active.
type DebugFlags uint8

const (
	TraceSyscalls DebugFlags = 1 << iota
	TraceBreakpoints
	SingleStep
	FollowFork
)

// Actions is what the supervisor must apply after a Step call, per §9's
// cyclic-ownership design note: the tracee returns intent rather than
// reaching into the supervisor's tracee map directly.
type Actions struct {
	AddTracee  []int32
	RemoveSelf bool
}

// Tracee is one traced process.
type Tracee struct {
	Pid   int32
	State State
	Flags DebugFlags

	dispatcher *syscalltrace.Dispatcher
	catalog    *coverage.Catalog
	backend    breakpoint.Backend

	// armedBP is set while a non-single-shot breakpoint is mid-rearm: the
	// single-step window in which no other event for this pid may be
	// interleaved (§4.3, §5).
	armedBP *breakpoint.Breakpoint
}

// New creates a tracee in INITIAL_STOP, the state every tracee starts in
// whether spawned directly or observed via fork/clone/vfork (§3).
func New(pid int32, flags DebugFlags, dispatcher *syscalltrace.Dispatcher, catalog *coverage.Catalog, backend breakpoint.Backend) *Tracee {
	return &Tracee{
		Pid:        pid,
		State:      InitialStop,
		Flags:      flags,
		dispatcher: dispatcher,
		catalog:    catalog,
		backend:    backend,
	}
}

// initOptions is the ptrace option set installed on every tracee's first
// stop (§4.7 INITIAL_STOP row). Without the FollowFork flag the
// clone/fork/vfork options are left out, so children are not traced.
const initOptions = inferior.OptTraceClone | inferior.OptTraceFork |
	inferior.OptTraceVfork | inferior.OptTraceExec | inferior.OptTraceExit |
	inferior.OptSysGood

// Step advances the state machine by one observed kernel stop, per the
// §4.7 transition table. It issues whatever resume primitive the
// transition calls for before returning, except when ev is Exited/Signaled
// (nothing to resume). The returned error is a per-tracee, isolated failure
// (§7): the caller should log it and keep going, not abort the supervisor.
func (t *Tracee) Step(ev StopEvent) (Actions, error) {
	switch ev.Kind {
	case Exited, Signaled:
		// §9 open question (b): WIFSIGNALED is handled identically to
		// WIFEXITED — remove and continue, never leave a zombie entry.
		t.State = Exited
		return Actions{RemoveSelf: true}, nil
	}

	switch t.State {
	case InitialStop:
		return t.stepInitialStop(ev)
	case Running:
		return t.stepRunning(ev)
	case Syscall:
		return t.stepSyscall(ev)
	default:
		return Actions{}, fmt.Errorf("tracee %d: step called in terminal state %s", t.Pid, t.State)
	}
}

func (t *Tracee) stepInitialStop(ev StopEvent) (Actions, error) {
	opts := initOptions
	if t.Flags&FollowFork == 0 {
		opts &^= inferior.OptTraceClone | inferior.OptTraceFork | inferior.OptTraceVfork
	}
	if err := inferior.SetOptions(t.Pid, opts); err != nil {
		return Actions{}, fmt.Errorf("tracee %d: %w", t.Pid, err)
	}
	t.State = Running
	if err := inferior.Resume(t.Pid, inferior.Syscall, 0); err != nil {
		return Actions{}, fmt.Errorf("tracee %d: %w", t.Pid, err)
	}
	return Actions{}, nil
}

func (t *Tracee) stepRunning(ev StopEvent) (Actions, error) {
	switch ev.Kind {
	case SyscallStop:
		if t.dispatcher != nil {
			if err := t.dispatcher.OnEnter(); err != nil {
				return t.recoverProtocolViolation(err)
			}
		}
		t.State = Syscall
		return Actions{}, t.resumeSyscall(0)

	case GroupStop:
		return t.stepGroupStop(ev)

	case SignalDeliveryStop:
		if ev.Signal == unix.SIGTRAP {
			if acted, actions, err := t.tryHandleTrap(); acted {
				return actions, err
			}
			if t.armedBP != nil {
				// The single-step re-arm window just closed (§4.3): this
				// SIGTRAP is the trace machinery, not a real signal, so it
				// is not forwarded.
				return Actions{}, t.resumeSyscall(0)
			}
		}
		// §9 open question (a): forward the signal on resume.
		return Actions{}, t.resumeSyscall(ev.Signal)

	default:
		return Actions{}, fmt.Errorf("tracee %d: unexpected event %v in RUNNING", t.Pid, ev.Kind)
	}
}

func (t *Tracee) stepSyscall(ev StopEvent) (Actions, error) {
	if ev.Kind != SyscallStop {
		// Protocol violation (§7): an event decodes to a state transition
		// that's impossible from SYSCALL. Force RUNNING and resume.
		t.State = Running
		return Actions{}, t.resumeSyscall(0)
	}
	if t.dispatcher != nil {
		if err := t.dispatcher.OnExit(); err != nil {
			return t.recoverProtocolViolation(err)
		}
	}
	t.State = Running
	return Actions{}, t.resumeSyscall(0)
}

func (t *Tracee) stepGroupStop(ev StopEvent) (Actions, error) {
	var actions Actions
	switch ev.Event {
	case EventClone, EventFork, EventVfork:
		newPid, err := inferior.GetEventMsg(t.Pid)
		if err == nil {
			actions.AddTracee = []int32{int32(newPid)}
		}
	case EventExec, EventExit:
		// Resume only; no new tracee, no state change beyond that.
	}
	return actions, inferior.Resume(t.Pid, inferior.Cont, 0)
}

// tryHandleTrap checks whether a plain SIGTRAP corresponds to a known
// armed breakpoint and, if so, runs the §4.3 hit-handling algorithm.
func (t *Tracee) tryHandleTrap() (bool, Actions, error) {
	if t.catalog == nil || t.backend == nil {
		return false, Actions{}, nil
	}

	regs, err := inferior.ReadRegisters(t.Pid)
	if err != nil {
		return true, Actions{}, fmt.Errorf("tracee %d: %w", t.Pid, err)
	}
	candidate := inferior.InstructionPointer(regs) - uint64(t.backend.TrapSize())

	bp, ok := t.catalog.Lookup(candidate)
	if !ok {
		return false, Actions{}, nil
	}

	result, err := breakpoint.Hit(t.Pid, bp, t.backend, t.catalog.OnHit(t.Pid))
	if err != nil {
		return true, Actions{}, fmt.Errorf("tracee %d: %w", t.Pid, err)
	}

	if result.NeedsSingleStep {
		t.armedBP = bp
		return true, Actions{}, inferior.Resume(t.Pid, inferior.SingleStep, 0)
	}
	return true, Actions{}, inferior.Resume(t.Pid, inferior.Syscall, 0)
}

// resumeSyscall re-arms a pending single-step breakpoint (if any) before
// resuming in syscall-stop mode, closing the single-step window from §4.3.
func (t *Tracee) resumeSyscall(sig unix.Signal) error {
	if t.armedBP != nil {
		bp := t.armedBP
		t.armedBP = nil
		if err := bp.Rearm(t.Pid, t.backend); err != nil {
			return fmt.Errorf("tracee %d: rearm: %w", t.Pid, err)
		}
	}
	return inferior.Resume(t.Pid, inferior.Syscall, sig)
}

func (t *Tracee) recoverProtocolViolation(cause error) (Actions, error) {
	// §7: protocol violation is logged (by the caller) and not fatal; the
	// tracee is forced to RUNNING and resumed.
	t.State = Running
	if err := t.resumeSyscall(0); err != nil {
		return Actions{}, fmt.Errorf("tracee %d: %w (after protocol violation: %w)", t.Pid, err, cause)
	}
	return Actions{}, fmt.Errorf("tracee %d: protocol violation: %w", t.Pid, cause)
}
