//go:build amd64

package inferior

import "golang.org/x/sys/unix"

// SyscallNumber returns the raw syscall number latched by the kernel on
// syscall entry (stable across the matching exit, per the x86-64 ABI which
// keeps it in orig_rax rather than rax).
func SyscallNumber(regs *unix.PtraceRegs) uint64 {
	return regs.Orig_rax
}

// SetSyscallNumber overwrites the pending syscall number (used to turn a
// syscall into a no-op for BlockSyscall, per §4.6).
func SetSyscallNumber(regs *unix.PtraceRegs, nr uint64) {
	regs.Orig_rax = nr
}

// Arg returns syscall argument index (0-5) per the x86-64 syscall calling
// convention (rdi, rsi, rdx, r10, r8, r9).
func Arg(regs *unix.PtraceRegs, index int) uint64 {
	switch index {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	case 3:
		return regs.R10
	case 4:
		return regs.R8
	case 5:
		return regs.R9
	default:
		return 0
	}
}

// SetArg sets syscall argument index (0-5).
func SetArg(regs *unix.PtraceRegs, index int, value uint64) {
	switch index {
	case 0:
		regs.Rdi = value
	case 1:
		regs.Rsi = value
	case 2:
		regs.Rdx = value
	case 3:
		regs.R10 = value
	case 4:
		regs.R8 = value
	case 5:
		regs.R9 = value
	}
}

// ReturnValue reads the syscall return value (only meaningful at exit).
func ReturnValue(regs *unix.PtraceRegs) int64 {
	return int64(regs.Rax)
}

// SetReturnValue overwrites the syscall return value (only meaningful at
// exit).
func SetReturnValue(regs *unix.PtraceRegs, value int64) {
	regs.Rax = uint64(value)
}

// InstructionPointer returns the program counter.
func InstructionPointer(regs *unix.PtraceRegs) uint64 {
	return regs.Rip
}

// SetInstructionPointer sets the program counter (used to rewind past a
// breakpoint trap, per §4.3).
func SetInstructionPointer(regs *unix.PtraceRegs, pc uint64) {
	regs.Rip = pc
}
