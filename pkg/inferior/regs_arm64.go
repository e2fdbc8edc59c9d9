//go:build arm64

package inferior

import "golang.org/x/sys/unix"

// SyscallNumber returns the raw syscall number, held in x8 on arm64.
func SyscallNumber(regs *unix.PtraceRegs) uint64 {
	return regs.Regs[8]
}

// SetSyscallNumber overwrites the pending syscall number (used to turn a
// syscall into a no-op for BlockSyscall, per §4.6).
func SetSyscallNumber(regs *unix.PtraceRegs, nr uint64) {
	regs.Regs[8] = nr
}

// Arg returns syscall argument index (0-5), held in x0-x5 on arm64.
func Arg(regs *unix.PtraceRegs, index int) uint64 {
	if index < 0 || index > 5 {
		return 0
	}
	return regs.Regs[index]
}

// SetArg sets syscall argument index (0-5).
func SetArg(regs *unix.PtraceRegs, index int, value uint64) {
	if index < 0 || index > 5 {
		return
	}
	regs.Regs[index] = value
}

// ReturnValue reads the syscall return value (only meaningful at exit),
// held in x0 on arm64.
func ReturnValue(regs *unix.PtraceRegs) int64 {
	return int64(regs.Regs[0])
}

// SetReturnValue overwrites the syscall return value (only meaningful at
// exit).
func SetReturnValue(regs *unix.PtraceRegs, value int64) {
	regs.Regs[0] = uint64(value)
}

// InstructionPointer returns the program counter.
func InstructionPointer(regs *unix.PtraceRegs) uint64 {
	return regs.Pc
}

// SetInstructionPointer sets the program counter (used to rewind past a
// breakpoint trap, per §4.3). arm64's trap is a full 4-byte instruction
// word, so there is no mid-instruction PC to rewind from in practice, but
// the hook exists for symmetry with amd64 and for re-arm bookkeeping.
func SetInstructionPointer(regs *unix.PtraceRegs, pc uint64) {
	regs.Pc = pc
}
