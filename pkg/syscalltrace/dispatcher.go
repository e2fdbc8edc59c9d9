package syscalltrace

import (
	"fmt"

	"tracehound/pkg/inferior"
	"tracehound/pkg/syscallid"
)

// invalidSyscallNumber is written over the raw syscall number to block a
// call: an ordinal well outside any real syscall table, so the kernel fails
// it at entry instead of no-op'ing a valid one (§4.6).
const invalidSyscallNumber = ^uint64(0)

// Dispatcher runs one tracee's enter/exit syscall cycle (C6): derive
// canonical identity, latch argument state, consult handlers and resource
// tracers, and finalize on exit. One Dispatcher exists per tracee, holding
// exactly one in-flight State at a time (§3, §4.6).
type Dispatcher struct {
	pid int32

	table    *syscallid.Table
	registry *Registry
	files    *FileTracerTable
	nets     *NetworkTracerTable
	logger   Logger

	state    State
	inFlight bool
}

// NewDispatcher creates a Dispatcher for pid. files/nets may be nil if that
// resource class isn't traced; logger may be nil to disable text tracing.
func NewDispatcher(pid int32, table *syscallid.Table, registry *Registry, files *FileTracerTable, nets *NetworkTracerTable, logger Logger) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		pid:      pid,
		table:    table,
		registry: registry,
		files:    files,
		nets:     nets,
		logger:   logger,
	}
}

// OnEnter runs the enter-side path: read registers, canonicalize, latch
// args, dispatch to handlers and resource tracers in the order §4.6
// specifies, write back any arguments an observer changed, and block the
// syscall in-register if requested.
func (d *Dispatcher) OnEnter() error {
	regs, err := inferior.ReadRegisters(d.pid)
	if err != nil {
		return fmt.Errorf("syscall enter pid %d: %w", d.pid, err)
	}

	raw := inferior.SyscallNumber(regs)
	id := d.table.Canonicalize(raw)
	n := syscallid.NArgs(id)

	d.state = State{Pid: d.pid, ID: id, RawNumber: raw, NArgs: n}
	for i := 0; i < int(n) && i < MaxArgs; i++ {
		d.state.Args[i] = inferior.Arg(regs, i)
	}
	d.inFlight = true

	action := d.registry.dispatchEnter(&d.state)

	if IsFileLifecycle(id) && d.files != nil {
		d.files.OnEnter(&d.state)
	}
	if IsNetLifecycle(id) && d.nets != nil {
		d.nets.OnEnter(&d.state)
		if d.state.Blocked {
			action = BlockSyscall
		}
	}

	if action == BlockSyscall {
		d.state.Blocked = true
	}
	if d.logger != nil {
		d.logger.LogEnter(&d.state)
	}

	// Arguments an observer changed in the State are written back so the
	// kernel executes the call with them.
	write := false
	for i := 0; i < int(n) && i < MaxArgs; i++ {
		if d.state.Args[i] != inferior.Arg(regs, i) {
			inferior.SetArg(regs, i, d.state.Args[i])
			write = true
		}
	}
	if action == BlockSyscall {
		inferior.SetSyscallNumber(regs, invalidSyscallNumber)
		write = true
	}
	if write {
		if err := inferior.WriteRegisters(d.pid, regs); err != nil {
			return fmt.Errorf("write syscall registers pid %d: %w", d.pid, err)
		}
	}
	return nil
}

// OnExit runs the exit-side path: read the return value, dispatch onExit to
// the same observers, log, and reset the cached state.
func (d *Dispatcher) OnExit() error {
	if !d.inFlight {
		return fmt.Errorf("syscall exit pid %d: no matching enter", d.pid)
	}

	regs, err := inferior.ReadRegisters(d.pid)
	if err != nil {
		return fmt.Errorf("syscall exit pid %d: %w", d.pid, err)
	}
	d.state.Ret = inferior.ReturnValue(regs)

	d.registry.dispatchExit(&d.state)

	if IsFileLifecycle(d.state.ID) || IsFileFollowup(d.state.ID) {
		if d.files != nil {
			d.files.OnExit(&d.state)
		}
	}
	if IsNetLifecycle(d.state.ID) || IsNetFollowup(d.state.ID) {
		if d.nets != nil {
			d.nets.OnExit(&d.state)
		}
	}

	if d.logger != nil {
		d.logger.LogExit(&d.state)
	}

	d.inFlight = false
	d.state.Reset()
	return nil
}
