package syscalltrace

import "tracehound/pkg/syscallid"

// Action is what a Handler decides should happen to the syscall it just
// observed on enter (§4.6).
type Action int

const (
	// Continue lets the syscall proceed unmodified.
	Continue Action = iota
	// BlockSyscall turns the syscall into a no-op: the dispatcher
	// overwrites the raw syscall number in the inferior's registers with
	// an invalid value before resuming, so it traps out with a failure at
	// exit.
	BlockSyscall
)

// Handler observes one canonical syscall id's enter/exit pair. Replaces
// inheritance-style subclassing with a small capability table, per §9's
// design note: dispatch is a lookup by id, not a type switch.
type Handler interface {
	// ID is the canonical syscall this handler observes.
	ID() syscallid.ID
	// OnEnter is called with the latched enter-side State. Returning
	// BlockSyscall prevents the call from reaching the kernel.
	OnEnter(s *State) Action
	// OnExit is called with the finalized State (return value set).
	OnExit(s *State)
}

// Registry dispatches to handlers by canonical syscall id. More than one
// handler may be registered for the same id; they run in registration
// order and the first non-Continue result wins (matching
// CompositeHandler's short-circuit in the teacher's dispatch layer).
type Registry struct {
	byID map[syscallid.ID][]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[syscallid.ID][]Handler)}
}

// Register adds h to the dispatch table for its ID.
func (r *Registry) Register(h Handler) {
	r.byID[h.ID()] = append(r.byID[h.ID()], h)
}

// dispatchEnter runs every handler registered for s.ID, in order, until one
// requests BlockSyscall.
func (r *Registry) dispatchEnter(s *State) Action {
	for _, h := range r.byID[s.ID] {
		if a := h.OnEnter(s); a != Continue {
			return a
		}
	}
	return Continue
}

func (r *Registry) dispatchExit(s *State) {
	for _, h := range r.byID[s.ID] {
		h.OnExit(s)
	}
}
