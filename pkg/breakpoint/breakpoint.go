// Package breakpoint implements the atomic inject/hit/restore/re-arm
// protocol for software breakpoints inside a ptrace-stopped inferior (§4.3).
package breakpoint

import (
	"fmt"

	"tracehound/pkg/inferior"
)

// State is a breakpoint's position in its lifecycle (§3 "Breakpoint").
type State int

const (
	// PendingAddr: the owning module's base address isn't known yet, so
	// there is no absolute address to arm.
	PendingAddr State = iota
	// Enabled: the trap instruction is live in the inferior.
	Enabled
	// Disabled: the original instruction has been restored.
	Disabled
	// SingleStepArmed: temporarily disabled so the inferior can step over
	// the original instruction before the trap is re-injected.
	SingleStepArmed
)

func (s State) String() string {
	switch s {
	case PendingAddr:
		return "pending-addr"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	case SingleStepArmed:
		return "single-step-armed"
	default:
		return "unknown"
	}
}

// Kind distinguishes a plain breakpoint from a coverage breakpoint, which is
// single-shot and reports hits to a coverage sink instead of a handler.
type Kind int

const (
	Plain Kind = iota
	Coverage
)

// Backup is the architecture-specific saved bytes a Backend needs to
// restore a breakpoint site. Its length is chosen by the Backend and is
// opaque to callers (1 byte on x86-family, 4 bytes on ARM — §4.3).
type Backup struct {
	bytes []byte
}

// Backend is the architecture-specific trap-instruction primitive (C3).
// Both operations require the target pid to already be ptrace-stopped.
type Backend interface {
	// TrapSize is the length in bytes of the trap instruction.
	TrapSize() int
	// Inject overwrites the instruction at addr with a trap and returns
	// the original bytes.
	Inject(pid int32, addr uint64) (Backup, error)
	// Restore writes the original bytes back at addr.
	Restore(pid int32, addr uint64, backup Backup) error
}

// Breakpoint is one intended trap at (module, offset).
type Breakpoint struct {
	Module string
	Offset uint64
	Addr   uint64 // valid once State != PendingAddr
	Label  string
	Kind   Kind
	State  State

	// ModuleID is the coverage writer's id for Module; only meaningful
	// when Kind == Coverage.
	ModuleID uint16

	backup Backup
}

// New creates a pending breakpoint at (module, offset).
func New(module string, offset uint64, label string, kind Kind) *Breakpoint {
	return &Breakpoint{
		Module: module,
		Offset: offset,
		Label:  label,
		Kind:   kind,
		State:  PendingAddr,
	}
}

// Rebase supplies the module's absolute base address, turning a
// pending-addr breakpoint into one that can be armed. Per §3, this is
// computed once per module (break_addr - offset on first observation) and
// then reused for every breakpoint sharing that module.
func (b *Breakpoint) Rebase(moduleBase uint64) {
	b.Addr = moduleBase + b.Offset
}

// Arm injects the trap at b.Addr. The caller must already have called
// Rebase (or constructed the breakpoint with a known absolute address).
func (b *Breakpoint) Arm(pid int32, backend Backend) error {
	if b.State == Enabled {
		return nil
	}
	backup, err := backend.Inject(pid, b.Addr)
	if err != nil {
		// §7: injection failure at a pending address leaves it pending;
		// the caller (the catalog) retries on the next module rebase.
		return fmt.Errorf("arm breakpoint %s+%#x: %w", b.Module, b.Offset, err)
	}
	b.backup = backup
	b.State = Enabled
	return nil
}

// Disable restores the original bytes without forgetting the breakpoint.
func (b *Breakpoint) Disable(pid int32, backend Backend) error {
	if b.State != Enabled {
		return nil
	}
	if err := backend.Restore(pid, b.Addr, b.backup); err != nil {
		return fmt.Errorf("disable breakpoint %s+%#x: %w", b.Module, b.Offset, err)
	}
	b.State = Disabled
	return nil
}

// HitResult tells the caller (the tracee state machine) what to do after a
// breakpoint fires.
type HitResult struct {
	// NeedsSingleStep is true when the caller must resume the tracee with
	// SINGLESTEP and call Rearm on the following stop.
	NeedsSingleStep bool
}

// Hit runs the §4.3 hit-handling algorithm for a trap observed at
// (reportedPC - backend.TrapSize()) matching b.Addr:
//  1. restore the original bytes
//  2. rewind the instruction pointer by the trap size
//  3. invoke onHit
//  4. single-shot breakpoints stay disabled; others need SINGLESTEP + Rearm
func Hit(pid int32, b *Breakpoint, backend Backend, onHit func(*Breakpoint)) (HitResult, error) {
	if err := b.Disable(pid, backend); err != nil {
		return HitResult{}, err
	}

	regs, err := inferior.ReadRegisters(pid)
	if err != nil {
		return HitResult{}, fmt.Errorf("hit breakpoint %s+%#x: %w", b.Module, b.Offset, err)
	}
	inferior.SetInstructionPointer(regs, inferior.InstructionPointer(regs)-uint64(backend.TrapSize()))
	if err := inferior.WriteRegisters(pid, regs); err != nil {
		return HitResult{}, fmt.Errorf("rewind pc for breakpoint %s+%#x: %w", b.Module, b.Offset, err)
	}

	if onHit != nil {
		onHit(b)
	}

	if b.Kind == Coverage {
		// Single-shot: leave disabled rather than re-arming.
		return HitResult{NeedsSingleStep: false}, nil
	}

	b.State = SingleStepArmed
	return HitResult{NeedsSingleStep: true}, nil
}

// Rearm re-injects the trap after the single-step window has closed. The
// caller must only invoke this after observing the single-step stop that
// followed a non-single-shot Hit.
func (b *Breakpoint) Rearm(pid int32, backend Backend) error {
	if b.State != SingleStepArmed {
		return fmt.Errorf("rearm breakpoint %s+%#x: not awaiting rearm (state=%s)", b.Module, b.Offset, b.State)
	}
	b.State = Disabled // so Arm doesn't early-return
	return b.Arm(pid, backend)
}
