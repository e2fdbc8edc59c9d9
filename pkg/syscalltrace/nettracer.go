package syscalltrace

import (
	"encoding/binary"
	"fmt"

	"tracehound/pkg/syscallid"
)

// ResourceTraceResult is the small tagged variant a NetworkTracer returns to
// decide what happens to a binding and to the syscall itself (§4.6).
type ResourceTraceResult int

const (
	// TraceOnly binds the fd and removes the tracer from the pending
	// list: it matched exactly once.
	TraceOnly ResourceTraceResult = iota
	// TraceAndKeep binds the fd but leaves the tracer pending, so it can
	// match further accepts on the same listening socket.
	TraceAndKeep
	// DoNotTrace declines the match; the tracer stays pending.
	DoNotTrace
	// BlockSyscallResult asks the dispatcher to block the syscall.
	BlockSyscallResult
	// ContinueResult lets the syscall proceed with no binding change.
	ContinueResult
	// Detach is accepted from OnFilter, but NetworkTracerTable takes no
	// action on it: the tracer stays pending and no active fd binding is
	// removed.
	Detach
)

// NetworkTracer observes the lifetime of one socket-bound resource,
// following the same pending/active pattern as FileTracer but with a richer
// result so a listening socket can keep matching new accepts (§4.6).
type NetworkTracer interface {
	OnFilter(s *State, addr *SockAddr) ResourceTraceResult

	OnRead(s *State)
	OnWrite(s *State)
	OnClose(s *State)
	OnMisc(s *State)
}

var netLifecycleIDs = map[syscallid.ID]bool{
	syscallid.Socket:  true,
	syscallid.Bind:    true,
	syscallid.Listen:  true,
	syscallid.Accept:  true,
	syscallid.Accept4: true,
	syscallid.Connect: true,
}

var netFollowupIDs = map[syscallid.ID]func(NetworkTracer, *State){
	syscallid.SendTo:   NetworkTracer.OnWrite,
	syscallid.SendMsg:  NetworkTracer.OnWrite,
	syscallid.RecvFrom: NetworkTracer.OnRead,
	syscallid.RecvMsg:  NetworkTracer.OnRead,
}

// IsNetLifecycle reports whether id is a socket-lifecycle call routed
// through OnFilter.
func IsNetLifecycle(id syscallid.ID) bool { return netLifecycleIDs[id] }

// IsNetFollowup reports whether id is routed to an already-bound tracer.
func IsNetFollowup(id syscallid.ID) bool {
	_, ok := netFollowupIDs[id]
	return ok
}

// SockAddr is the decoded subset of a sockaddr this tracer logs (§4.6
// "Filtering for inet socket calls"): family plus, for inet families, the
// address and port. Decoding failures or non-inet families just leave
// Family set and the rest zero; this never gates tracing decisions.
type SockAddr struct {
	Family uint16
	Addr   string
	Port   uint16
}

const (
	afInet  = 2
	afInet6 = 10
)

// DecodeSockAddr reads a sockaddr of addrLen bytes from the tracee at addr
// and decodes the inet address/port fields if the family is AF_INET or
// AF_INET6.
func DecodeSockAddr(read func(addr uint64, n int) ([]byte, error), addr uint64, addrLen uint64) (SockAddr, error) {
	if addrLen < 2 {
		return SockAddr{}, fmt.Errorf("decode sockaddr: length %d too short", addrLen)
	}
	buf, err := read(addr, int(addrLen))
	if err != nil {
		return SockAddr{}, fmt.Errorf("decode sockaddr: %w", err)
	}

	family := binary.LittleEndian.Uint16(buf[0:2])
	sa := SockAddr{Family: family}

	switch family {
	case afInet:
		if len(buf) < 8 {
			return sa, nil
		}
		sa.Port = binary.BigEndian.Uint16(buf[2:4])
		sa.Addr = fmt.Sprintf("%d.%d.%d.%d", buf[4], buf[5], buf[6], buf[7])
	case afInet6:
		if len(buf) < 24 {
			return sa, nil
		}
		sa.Port = binary.BigEndian.Uint16(buf[2:4])
		sa.Addr = fmt.Sprintf("%x", buf[8:24])
	}
	return sa, nil
}

// NetworkTracerTable mirrors FileTracerTable's pending/active bookkeeping
// with the richer ResourceTraceResult protocol (§4.6, §8 scenario S5).
type NetworkTracerTable struct {
	pending []NetworkTracer
	active  map[uint64]NetworkTracer
	binding map[int32]NetworkTracer
	decode  func(addr uint64, n int) ([]byte, error)
}

// NewNetworkTracerTable creates an empty table. decode reads inferior
// memory, used to resolve the sockaddr argument on bind/connect/accept.
func NewNetworkTracerTable(decode func(addr uint64, n int) ([]byte, error)) *NetworkTracerTable {
	return &NetworkTracerTable{
		active:  make(map[uint64]NetworkTracer),
		binding: make(map[int32]NetworkTracer),
		decode:  decode,
	}
}

// AddPending registers a not-yet-bound network tracer.
func (t *NetworkTracerTable) AddPending(nt NetworkTracer) {
	t.pending = append(t.pending, nt)
}

// OnEnter offers the (optionally decoded) sockaddr to every pending tracer
// via OnFilter, applying the first non-DoNotTrace result.
func (t *NetworkTracerTable) OnEnter(s *State) {
	if len(t.pending) == 0 {
		return
	}

	var addr *SockAddr
	if sa, ok := t.decodeArgAddr(s); ok {
		addr = &sa
	}

	for i, nt := range t.pending {
		switch nt.OnFilter(s, addr) {
		case TraceOnly:
			t.binding[s.Pid] = nt
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		case TraceAndKeep:
			t.binding[s.Pid] = nt
			return
		case BlockSyscallResult:
			s.Blocked = true
			return
		case DoNotTrace, ContinueResult:
			continue
		}
	}
}

// decodeArgAddr decodes the sockaddr argument at enter for bind/connect,
// where arg1 is the sockaddr pointer and arg2 is its length, both valid
// already on enter. accept/accept4 are decoded separately at exit (see
// decodeExitAddr): their addrlen argument is a pointer to a socklen_t the
// kernel only fills in once the call completes.
func (t *NetworkTracerTable) decodeArgAddr(s *State) (SockAddr, bool) {
	if t.decode == nil {
		return SockAddr{}, false
	}
	switch s.ID {
	case syscallid.Bind, syscallid.Connect:
		if s.NArgs < 3 {
			return SockAddr{}, false
		}
		sa, err := DecodeSockAddr(t.decode, s.Args[1], s.Args[2])
		if err != nil {
			return SockAddr{}, false
		}
		return sa, true
	}
	return SockAddr{}, false
}

// decodeExitAddr decodes accept/accept4's peer sockaddr after the syscall
// has returned: addrlen (arg2) points at a socklen_t the kernel overwrites
// with the actual length, and only then is the sockaddr at arg1 valid to
// read (§4.6 "Filtering for inet socket calls"). Purely for logging; it
// never feeds back into the TraceOnly/TraceAndKeep decision already made
// on enter.
func (t *NetworkTracerTable) decodeExitAddr(s *State) (SockAddr, bool) {
	if t.decode == nil || s.NArgs < 3 {
		return SockAddr{}, false
	}
	lenBuf, err := t.decode(s.Args[2], 4)
	if err != nil || len(lenBuf) < 4 {
		return SockAddr{}, false
	}
	addrLen := uint64(binary.LittleEndian.Uint32(lenBuf))
	sa, err := DecodeSockAddr(t.decode, s.Args[1], addrLen)
	if err != nil {
		return SockAddr{}, false
	}
	return sa, true
}

// bindingFd reports the fd a completed lifecycle call binds into the active
// table, per its real kernel return convention: bind/connect/listen return
// 0 on success and the fd being operated on is the argument the caller
// passed in (arg0); socket/accept/accept4 return the new fd directly.
// Reports ok=false if the call failed.
func bindingFd(s *State) (uint64, bool) {
	switch s.ID {
	case syscallid.Socket, syscallid.Accept, syscallid.Accept4:
		if s.Ret < 0 {
			return 0, false
		}
		return uint64(s.Ret), true
	case syscallid.Bind, syscallid.Connect, syscallid.Listen:
		if s.Ret != 0 || s.NArgs == 0 {
			return 0, false
		}
		return s.Args[0], true
	default:
		return 0, false
	}
}

// OnExit completes a pending lifecycle call with its real fd, or dispatches
// to an already-bound tracer.
func (t *NetworkTracerTable) OnExit(s *State) {
	if nt, ok := t.binding[s.Pid]; ok {
		delete(t.binding, s.Pid)
		if fd, ok := bindingFd(s); ok {
			t.active[fd] = nt
			if s.ID == syscallid.Accept || s.ID == syscallid.Accept4 {
				if sa, ok := t.decodeExitAddr(s); ok {
					s.PeerAddr = &sa
				}
			}
		}
		return
	}

	if s.NArgs == 0 {
		return
	}
	fd := s.Args[0]
	nt, ok := t.active[fd]
	if !ok {
		return
	}

	if fn, ok := netFollowupIDs[s.ID]; ok {
		fn(nt, s)
		return
	}
	nt.OnMisc(s)
}
