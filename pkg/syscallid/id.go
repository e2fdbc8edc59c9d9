// Package syscallid maps architecture-native syscall numbers onto a single
// cross-architecture enumeration, so the rest of the tracer never branches on
// "which architecture is this raw number from".
package syscallid

// ID is a canonical, architecture-independent syscall identifier.
type ID int

// NoSyscall is the sentinel for "no syscall in flight" and for raw numbers
// that the active architecture's table doesn't recognize.
const NoSyscall ID = 0

const (
	_ ID = iota // reserve 0 for NoSyscall
	Read
	Write
	Open
	OpenAt
	Close
	Stat
	FStat
	LStat
	NewFStatAt
	LSeek
	MMap
	MUnmap
	Brk
	IOCtl
	Access
	FAccessAt
	Dup
	Dup2
	Dup3
	Pipe
	Pipe2
	Socket
	Bind
	Listen
	Accept
	Accept4
	Connect
	SendTo
	RecvFrom
	SendMsg
	RecvMsg
	Shutdown
	GetSockOpt
	SetSockOpt
	Clone
	Fork
	VFork
	Execve
	ExecveAt
	Exit
	ExitGroup
	Wait4
	Kill
	RtSigAction
	Nanosleep
	GetPID
	GetPPID
	Prctl
	Unlink
	UnlinkAt
	Mkdir
	MkdirAt
	Rename
	RenameAt
	RenameAt2
	Readlink
	ReadlinkAt
	Chdir
	Fcntl

	numIDs
)

var names = map[ID]string{
	NoSyscall:   "NO_SYSCALL",
	Read:        "read",
	Write:       "write",
	Open:        "open",
	OpenAt:      "openat",
	Close:       "close",
	Stat:        "stat",
	FStat:       "fstat",
	LStat:       "lstat",
	NewFStatAt:  "newfstatat",
	LSeek:       "lseek",
	MMap:        "mmap",
	MUnmap:      "munmap",
	Brk:         "brk",
	IOCtl:       "ioctl",
	Access:      "access",
	FAccessAt:   "faccessat",
	Dup:         "dup",
	Dup2:        "dup2",
	Dup3:        "dup3",
	Pipe:        "pipe",
	Pipe2:       "pipe2",
	Socket:      "socket",
	Bind:        "bind",
	Listen:      "listen",
	Accept:      "accept",
	Accept4:     "accept4",
	Connect:     "connect",
	SendTo:      "sendto",
	RecvFrom:    "recvfrom",
	SendMsg:     "sendmsg",
	RecvMsg:     "recvmsg",
	Shutdown:    "shutdown",
	GetSockOpt:  "getsockopt",
	SetSockOpt:  "setsockopt",
	Clone:       "clone",
	Fork:        "fork",
	VFork:       "vfork",
	Execve:      "execve",
	ExecveAt:    "execveat",
	Exit:        "exit",
	ExitGroup:   "exit_group",
	Wait4:       "wait4",
	Kill:        "kill",
	RtSigAction: "rt_sigaction",
	Nanosleep:   "nanosleep",
	GetPID:      "getpid",
	GetPPID:     "getppid",
	Prctl:       "prctl",
	Unlink:      "unlink",
	UnlinkAt:    "unlinkat",
	Mkdir:       "mkdir",
	MkdirAt:     "mkdirat",
	Rename:      "rename",
	RenameAt:    "renameat",
	RenameAt2:   "renameat2",
	Readlink:    "readlink",
	ReadlinkAt:  "readlinkat",
	Chdir:       "chdir",
	Fcntl:       "fcntl",
}

// String returns the canonical lowercase syscall name, or "unknown" for an
// out-of-range id.
func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return "unknown"
}

var argCounts = map[ID]uint8{
	NoSyscall:   0,
	Read:        3,
	Write:       3,
	Open:        3,
	OpenAt:      4,
	Close:       1,
	Stat:        2,
	FStat:       2,
	LStat:       2,
	NewFStatAt:  4,
	LSeek:       3,
	MMap:        6,
	MUnmap:      2,
	Brk:         1,
	IOCtl:       3,
	Access:      2,
	FAccessAt:   4,
	Dup:         1,
	Dup2:        2,
	Dup3:        3,
	Pipe:        1,
	Pipe2:       2,
	Socket:      3,
	Bind:        3,
	Listen:      2,
	Accept:      3,
	Accept4:     4,
	Connect:     3,
	SendTo:      6,
	RecvFrom:    6,
	SendMsg:     3,
	RecvMsg:     3,
	Shutdown:    2,
	GetSockOpt:  5,
	SetSockOpt:  5,
	Clone:       5,
	Fork:        0,
	VFork:       0,
	Execve:      3,
	ExecveAt:    5,
	Exit:        1,
	ExitGroup:   1,
	Wait4:       4,
	Kill:        2,
	RtSigAction: 4,
	Nanosleep:   2,
	GetPID:      0,
	GetPPID:     0,
	Prctl:       5,
	Unlink:      1,
	UnlinkAt:    3,
	Mkdir:       2,
	MkdirAt:     3,
	Rename:      2,
	RenameAt:    4,
	RenameAt2:   5,
	Readlink:    3,
	ReadlinkAt:  4,
	Chdir:       1,
	Fcntl:       3,
}

// NArgs returns the argument count for a canonical id (<= 6).
func NArgs(id ID) uint8 {
	return argCounts[id]
}
