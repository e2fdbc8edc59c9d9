package coverage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ResolveModuleBase finds the runtime load address of a module by basename,
// by scanning /proc/<pid>/maps for the first mapping whose backing file
// matches. This is how a module descriptor's base address (§3) gets
// discovered in practice: the coverage descriptor names modules by file
// name, and the loader's choice of load address is only visible through the
// kernel's per-process memory map, not anything DWARF- or symbol-derived
// (out of scope per §1 Non-goals).
func ResolveModuleBase(pid int32, moduleName string) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, fmt.Errorf("resolve base for %s: %w", moduleName, err)
	}
	defer f.Close()

	want := filepath.Base(moduleName)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		path := fields[len(fields)-1]
		if filepath.Base(path) != want {
			continue
		}
		addrRange := fields[0]
		startStr, _, ok := strings.Cut(addrRange, "-")
		if !ok {
			continue
		}
		start, err := strconv.ParseUint(startStr, 16, 64)
		if err != nil {
			continue
		}
		return start, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("resolve base for %s: %w", moduleName, err)
	}
	return 0, fmt.Errorf("resolve base for %s: not mapped in pid %d", moduleName, pid)
}
