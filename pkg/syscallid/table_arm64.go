//go:build arm64

package syscallid

import "golang.org/x/sys/unix"

// archSyscallTable maps the arm64 syscall ABI onto canonical ids.
//
// arm64 only implements Linux's "generic" syscall list: there is no open,
// stat, lstat, access, dup2, pipe, fork, vfork, unlink, mkdir, rename or
// readlink syscall number at all (only their *at/openat/clone equivalents),
// so those ids are simply absent from this table rather than mapped to
// NoSyscall numbers that would never actually be observed.
var archSyscallTable = map[uint64]ID{
	uint64(unix.SYS_READ):         Read,
	uint64(unix.SYS_WRITE):        Write,
	uint64(unix.SYS_OPENAT):       OpenAt,
	uint64(unix.SYS_CLOSE):        Close,
	uint64(unix.SYS_FSTAT):        FStat,
	uint64(unix.SYS_NEWFSTATAT):   NewFStatAt,
	uint64(unix.SYS_LSEEK):        LSeek,
	uint64(unix.SYS_MMAP):         MMap,
	uint64(unix.SYS_MUNMAP):       MUnmap,
	uint64(unix.SYS_BRK):          Brk,
	uint64(unix.SYS_IOCTL):        IOCtl,
	uint64(unix.SYS_FACCESSAT):    FAccessAt,
	uint64(unix.SYS_DUP):          Dup,
	uint64(unix.SYS_DUP3):         Dup3,
	uint64(unix.SYS_PIPE2):        Pipe2,
	uint64(unix.SYS_SOCKET):       Socket,
	uint64(unix.SYS_BIND):         Bind,
	uint64(unix.SYS_LISTEN):       Listen,
	uint64(unix.SYS_ACCEPT):       Accept,
	uint64(unix.SYS_ACCEPT4):      Accept4,
	uint64(unix.SYS_CONNECT):      Connect,
	uint64(unix.SYS_SENDTO):       SendTo,
	uint64(unix.SYS_RECVFROM):     RecvFrom,
	uint64(unix.SYS_SENDMSG):      SendMsg,
	uint64(unix.SYS_RECVMSG):      RecvMsg,
	uint64(unix.SYS_SHUTDOWN):     Shutdown,
	uint64(unix.SYS_GETSOCKOPT):   GetSockOpt,
	uint64(unix.SYS_SETSOCKOPT):   SetSockOpt,
	uint64(unix.SYS_CLONE):        Clone,
	uint64(unix.SYS_EXECVE):       Execve,
	uint64(unix.SYS_EXECVEAT):     ExecveAt,
	uint64(unix.SYS_EXIT):         Exit,
	uint64(unix.SYS_EXIT_GROUP):   ExitGroup,
	uint64(unix.SYS_WAIT4):        Wait4,
	uint64(unix.SYS_KILL):         Kill,
	uint64(unix.SYS_RT_SIGACTION): RtSigAction,
	uint64(unix.SYS_NANOSLEEP):    Nanosleep,
	uint64(unix.SYS_GETPID):       GetPID,
	uint64(unix.SYS_GETPPID):      GetPPID,
	uint64(unix.SYS_PRCTL):        Prctl,
	uint64(unix.SYS_UNLINKAT):     UnlinkAt,
	uint64(unix.SYS_MKDIRAT):      MkdirAt,
	uint64(unix.SYS_RENAMEAT):     RenameAt,
	uint64(unix.SYS_RENAMEAT2):    RenameAt2,
	uint64(unix.SYS_READLINKAT):   ReadlinkAt,
	uint64(unix.SYS_CHDIR):        Chdir,
	uint64(unix.SYS_FCNTL):        Fcntl,
}
