package coverage

import (
	"sync"

	"tracehound/pkg/breakpoint"
)

// Catalog owns the full set of placements read from a coverage descriptor
// (C4) and drives their lifecycle: rebasing a module's breakpoints the
// first time its runtime load address is discovered, arming them in a
// tracee, and recording coverage-kind hits to the Writer.
type Catalog struct {
	writer  *Writer
	backend breakpoint.Backend

	mu       sync.Mutex
	byModule map[string][]*breakpoint.Breakpoint
	byAddr   map[uint64]*breakpoint.Breakpoint
	based    map[string]bool
}

// NewCatalog creates an empty catalog. writer may be nil if no breakpoints
// in this catalog are coverage-typed (e.g. a plain debugging breakpoint
// set).
func NewCatalog(writer *Writer, backend breakpoint.Backend) *Catalog {
	return &Catalog{
		writer:   writer,
		backend:  backend,
		byModule: make(map[string][]*breakpoint.Breakpoint),
		byAddr:   make(map[uint64]*breakpoint.Breakpoint),
		based:    make(map[string]bool),
	}
}

// Load drains r into the catalog. Coverage-typed breakpoints are assigned a
// module id from the writer as they're read, per §4.5's "module table
// updated before the first hit" invariant.
func (c *Catalog) Load(r *Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		bp, ok := r.Next()
		if !ok {
			return
		}
		if bp.Kind == breakpoint.Coverage && c.writer != nil {
			bp.ModuleID = c.writer.GetModuleID(bp.Module)
		}
		c.byModule[bp.Module] = append(c.byModule[bp.Module], bp)
	}
}

// ArmForPid resolves and applies the base address of every module whose base
// isn't yet known, then arms every breakpoint still in PendingAddr, for the
// given stopped pid. Modules whose base
// has already been resolved are left alone (the catalog doesn't re-resolve
// them per tracee — once known, a module's base is process-wide stable).
// Per §7, an injection failure at a still-pending address is not fatal: the
// breakpoint stays pending and ArmForPid retries it on its next call (e.g.
// the next module-rebase opportunity).
func (c *Catalog) ArmForPid(pid int32) []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for module, bps := range c.byModule {
		if !c.based[module] {
			base, err := ResolveModuleBase(pid, module)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			c.based[module] = true
			if c.writer != nil {
				c.writer.UpdateModuleBaseAddr(module, base)
			}
			for _, bp := range bps {
				bp.Rebase(base)
			}
		}
		for _, bp := range bps {
			// Only breakpoints never armed successfully are (re)tried: an
			// enabled one is live, and a disabled single-shot one stays off.
			if bp.State != breakpoint.PendingAddr {
				continue
			}
			if err := bp.Arm(pid, c.backend); err != nil {
				errs = append(errs, err)
				continue
			}
			c.byAddr[bp.Addr] = bp
		}
	}
	return errs
}

// Lookup finds the breakpoint armed at addr, if any. The tracee state
// machine calls this to decide whether a trap stop is a known coverage/debug
// breakpoint versus some other SIGTRAP.
func (c *Catalog) Lookup(addr uint64) (*breakpoint.Breakpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bp, ok := c.byAddr[addr]
	return bp, ok
}

// OnHit is the breakpoint.Hit callback for coverage-typed breakpoints: it
// records the tuple to the Writer. Non-coverage breakpoints pass their own
// handler instead.
func (c *Catalog) OnHit(pid int32) func(*breakpoint.Breakpoint) {
	return func(bp *breakpoint.Breakpoint) {
		if bp.Kind != breakpoint.Coverage || c.writer == nil {
			return
		}
		_ = c.writer.RecordCov(pid, bp.ModuleID, bp.Addr)
	}
}
