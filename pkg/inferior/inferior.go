// Package inferior wraps the raw ptrace/wait primitives the rest of the
// tracer is built on: spawning a traced child, reading and writing its
// registers and memory, resuming it in various modes, and decoding the
// options/event-message side channels ptrace exposes around fork/clone.
//
// Every operation here requires its target pid to be in a ptrace-stop;
// calling one against a running or vanished pid surfaces as an error rather
// than blocking or panicking (§4.1, §7).
package inferior

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrVanished is returned (wrapped) when a ptrace or wait operation targets a
// pid the kernel no longer knows about (ESRCH). Per §7 this is recovered
// locally by the caller, not treated as fatal.
var ErrVanished = errors.New("inferior vanished")

func wrapErr(pid int32, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("%s pid %d: %w", op, pid, ErrVanished)
	}
	return fmt.Errorf("%s pid %d: %w", op, pid, err)
}

// ResumeMode selects how a stopped tracee is resumed.
type ResumeMode int

const (
	// Cont resumes free-running, stopping only at the next signal.
	Cont ResumeMode = iota
	// Syscall resumes until the next syscall-enter or syscall-exit stop.
	Syscall
	// SingleStep resumes for exactly one instruction.
	SingleStep
)

// Options is a bitmask of ptrace options, matching PTRACE_O_* flags.
type Options uint32

const (
	OptTraceClone Options = 1 << iota
	OptTraceFork
	OptTraceVfork
	OptTraceExec
	OptTraceExit
	OptSysGood
)

func (o Options) toPtraceFlags() int {
	var f int
	if o&OptTraceClone != 0 {
		f |= unix.PTRACE_O_TRACECLONE
	}
	if o&OptTraceFork != 0 {
		f |= unix.PTRACE_O_TRACEFORK
	}
	if o&OptTraceVfork != 0 {
		f |= unix.PTRACE_O_TRACEVFORK
	}
	if o&OptTraceExec != 0 {
		f |= unix.PTRACE_O_TRACEEXEC
	}
	if o&OptTraceExit != 0 {
		f |= unix.PTRACE_O_TRACEEXIT
	}
	if o&OptSysGood != 0 {
		f |= unix.PTRACE_O_TRACESYSGOOD
	}
	return f
}

// StdioMode controls how a spawned inferior's standard streams are wired.
type StdioMode int

const (
	// Inherit connects the inferior directly to this process's stdio.
	Inherit StdioMode = iota
	// PTY connects the inferior to the write end of pty, whose read end
	// the caller owns.
	PTY
)

// SpawnOptions configures Spawn.
type SpawnOptions struct {
	Stdio StdioMode
	// Tty is required when Stdio == PTY: the slave end of an already-open
	// pty pair, used for the child's stdin/stdout/stderr.
	Tty *os.File
}

// Spawn forks a child, arranges for it to request tracing (PTRACE_TRACEME)
// before exec, and execs program with argv. The first stop the parent
// observes for the returned pid is the tracee's INITIAL_STOP (§4.1).
func Spawn(program string, argv []string, opts SpawnOptions) (*exec.Cmd, int32, error) {
	cmd := exec.Command(program, argv...)
	switch opts.Stdio {
	case PTY:
		if opts.Tty == nil {
			return nil, 0, fmt.Errorf("spawn %s: PTY stdio mode requires a tty", program)
		}
		cmd.Stdin = opts.Tty
		cmd.Stdout = opts.Tty
		cmd.Stderr = opts.Tty
		cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true, Setsid: true, Setctty: true}
	default:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("spawn %s: %w", program, err)
	}
	return cmd, int32(cmd.Process.Pid), nil
}

// ReadRegisters reads the full register set of a stopped tracee.
func ReadRegisters(pid int32) (*unix.PtraceRegs, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(int(pid), &regs); err != nil {
		return nil, wrapErr(pid, "getregs", err)
	}
	return &regs, nil
}

// WriteRegisters writes back a (possibly modified) register set.
func WriteRegisters(pid int32, regs *unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(int(pid), regs); err != nil {
		return wrapErr(pid, "setregs", err)
	}
	return nil
}

// ReadMemory reads n bytes from the tracee's address space at addr.
func ReadMemory(pid int32, addr uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := unix.PtracePeekData(int(pid), addr, buf)
	if err != nil {
		return nil, wrapErr(pid, "peekdata", err)
	}
	return buf[:got], nil
}

// WriteMemory writes data into the tracee's address space at addr.
func WriteMemory(pid int32, addr uintptr, data []byte) error {
	if _, err := unix.PtracePokeData(int(pid), addr, data); err != nil {
		return wrapErr(pid, "pokedata", err)
	}
	return nil
}

// Resume continues a stopped tracee in the given mode, optionally
// re-injecting a pending signal.
func Resume(pid int32, mode ResumeMode, sig unix.Signal) error {
	var err error
	switch mode {
	case Syscall:
		err = unix.PtraceSyscall(int(pid), int(sig))
	case SingleStep:
		err = unix.PtraceSingleStep(int(pid))
	default:
		err = unix.PtraceCont(int(pid), int(sig))
	}
	return wrapErr(pid, "resume", err)
}

// SetOptions installs the ptrace option bitmask on pid.
func SetOptions(pid int32, opts Options) error {
	if err := unix.PtraceSetOptions(int(pid), opts.toPtraceFlags()); err != nil {
		return wrapErr(pid, "setoptions", err)
	}
	return nil
}

// GetEventMsg fetches the auxiliary event value for the tracee's last
// ptrace-event stop (the new child's pid on a fork/vfork/clone stop).
func GetEventMsg(pid int32) (uint64, error) {
	msg, err := unix.PtraceGetEventMsg(int(pid))
	if err != nil {
		return 0, wrapErr(pid, "geteventmsg", err)
	}
	return uint64(msg), nil
}

// SigInfo is the subset of siginfo_t this tracer needs.
type SigInfo struct {
	Signo int32
	Errno int32
	Code  int32
}

// PeekSigInfo fetches the signal info describing why the tracee is stopped.
func PeekSigInfo(pid int32) (SigInfo, error) {
	var raw [128]byte
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETSIGINFO,
		uintptr(pid), 0, uintptr(unsafe.Pointer(&raw[0])), 0, 0)
	if errno != 0 {
		return SigInfo{}, wrapErr(pid, "getsiginfo", errno)
	}
	info := SigInfo{
		// amd64 and arm64 are both little-endian.
		Signo: int32(binary.LittleEndian.Uint32(raw[0:4])),
		Errno: int32(binary.LittleEndian.Uint32(raw[4:8])),
		Code:  int32(binary.LittleEndian.Uint32(raw[8:12])),
	}
	return info, nil
}
