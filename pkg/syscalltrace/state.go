// Package syscalltrace implements the per-tracee syscall dispatch layer
// (C6): it resolves canonical syscall identity, latches enter-side state for
// pairing with the matching exit, and routes each call to registered
// syscall/file/network observers that can let it through, block it, or
// mutate its arguments (§4.6).
package syscalltrace

import "tracehound/pkg/syscallid"

// MaxArgs is the largest argument count any syscall on a supported
// architecture needs (§3 "≤ 6").
const MaxArgs = 6

// State is one half-turn of a syscall: latched on enter, finalized on exit,
// then reset. Exactly one exists per tracee at any time (§3
// "SyscallTraceData").
type State struct {
	Pid       int32
	ID        syscallid.ID
	RawNumber uint64
	Args      [MaxArgs]uint64
	NArgs     uint8
	Ret       int64
	Blocked   bool

	// PeerAddr is set by the network tracer table when a call's sockaddr
	// could only be decoded after the syscall completed (accept/accept4,
	// whose addrlen is an in/out pointer the kernel fills at exit). Nil
	// for every other call.
	PeerAddr *SockAddr
}

// Reset returns the state to the invalid, between-calls value (§3: after
// exit, NO_SYSCALL / pid 0 / zeroed args).
func (s *State) Reset() {
	*s = State{}
}

// Valid reports whether this state describes a syscall currently in
// flight (enter observed, exit not yet).
func (s *State) Valid() bool {
	return s.Pid != 0 && s.ID != syscallid.NoSyscall
}
