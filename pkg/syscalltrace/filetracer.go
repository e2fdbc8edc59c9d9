package syscalltrace

import "tracehound/pkg/syscallid"

// FileTracer observes the lifetime of one file-descriptor-bound resource.
// It starts out pending (not yet bound to an fd) and is promoted to the
// active table once OnFilter claims a file-lifecycle call (§4.6).
type FileTracer interface {
	// OnFilter is consulted on enter for file-lifecycle syscalls
	// (open/openat/close/dup-family). It returns true if this call is
	// creating the resource the tracer is interested in; if so, the fd
	// returned by the matching exit binds the tracer.
	OnFilter(s *State) bool

	OnRead(s *State)
	OnWrite(s *State)
	OnIoctl(s *State)
	OnClose(s *State)
	OnMmap(s *State)
	OnMunmap(s *State)
	OnStats(s *State)
	OnSeek(s *State)
	OnMisc(s *State)
}

// fileLifecycleIDs are the syscalls that can create a file descriptor and
// so are routed through OnFilter rather than the active-fd table (§4.6).
var fileLifecycleIDs = map[syscallid.ID]bool{
	syscallid.Open:   true,
	syscallid.OpenAt: true,
	syscallid.Close:  true,
	syscallid.Dup:    true,
	syscallid.Dup2:   true,
	syscallid.Dup3:   true,
}

// fileFollowupIDs are the fd-bound calls dispatched to an already-bound
// tracer's typed callback.
var fileFollowupIDs = map[syscallid.ID]func(FileTracer, *State){
	syscallid.Read:   FileTracer.OnRead,
	syscallid.Write:  FileTracer.OnWrite,
	syscallid.IOCtl:  FileTracer.OnIoctl,
	syscallid.MMap:   FileTracer.OnMmap,
	syscallid.MUnmap: FileTracer.OnMunmap,
	syscallid.FStat:  FileTracer.OnStats,
	syscallid.LSeek:  FileTracer.OnSeek,
	syscallid.Fcntl:  FileTracer.OnMisc,
}

// FileTracerTable holds the pending and fd-bound FileTracers for one
// tracee (§4.6 "pending_file_tracers" / "active_file_tracers").
type FileTracerTable struct {
	pending []FileTracer
	active  map[uint64]FileTracer // fd -> tracer
	binding map[int32]FileTracer  // pid -> tracer claimed on this enter, awaiting exit fd
}

// NewFileTracerTable creates an empty table.
func NewFileTracerTable() *FileTracerTable {
	return &FileTracerTable{
		active:  make(map[uint64]FileTracer),
		binding: make(map[int32]FileTracer),
	}
}

// AddPending registers a tracer that hasn't yet claimed a file descriptor.
func (t *FileTracerTable) AddPending(ft FileTracer) {
	t.pending = append(t.pending, ft)
}

// IsFileLifecycle reports whether id is a call OnFilter should see.
func IsFileLifecycle(id syscallid.ID) bool {
	return fileLifecycleIDs[id]
}

// IsFileFollowup reports whether id is routed to an already-bound tracer.
func IsFileFollowup(id syscallid.ID) bool {
	_, ok := fileFollowupIDs[id]
	return ok
}

// OnEnter runs OnFilter against every still-pending tracer for a
// file-lifecycle call; the first match is remembered so the matching exit
// can bind it to the returned fd.
func (t *FileTracerTable) OnEnter(s *State) {
	for i, ft := range t.pending {
		if ft.OnFilter(s) {
			t.binding[s.Pid] = ft
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
}

// OnExit completes a pending bind (if this pid claimed one on enter) or
// dispatches to an already-active tracer by fd.
func (t *FileTracerTable) OnExit(s *State) {
	if ft, ok := t.binding[s.Pid]; ok {
		delete(t.binding, s.Pid)
		if s.Ret >= 0 {
			t.active[uint64(s.Ret)] = ft
		}
		return
	}

	if s.NArgs == 0 {
		return
	}
	fd := s.Args[0]
	ft, ok := t.active[fd]
	if !ok {
		return
	}

	if s.ID == syscallid.Close {
		ft.OnClose(s)
		delete(t.active, fd)
		return
	}
	if fn, ok := fileFollowupIDs[s.ID]; ok {
		fn(ft, s)
		return
	}
	ft.OnMisc(s)
}
