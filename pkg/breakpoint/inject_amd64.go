//go:build amd64

package breakpoint

import "tracehound/pkg/inferior"

// trapInstr is a single INT3 byte, the x86-family breakpoint trap (§4.3).
var trapInstr = []byte{0xCC}

type amd64Backend struct{}

// DefaultBackend returns the trap-instruction backend for this build's
// architecture, chosen once at supervisor init (§4.2, §9).
func DefaultBackend() Backend { return amd64Backend{} }

func (amd64Backend) TrapSize() int { return len(trapInstr) }

func (amd64Backend) Inject(pid int32, addr uint64) (Backup, error) {
	orig, err := inferior.ReadMemory(pid, uintptr(addr), len(trapInstr))
	if err != nil {
		return Backup{}, err
	}
	saved := append([]byte(nil), orig...)
	if err := inferior.WriteMemory(pid, uintptr(addr), trapInstr); err != nil {
		return Backup{}, err
	}
	return Backup{bytes: saved}, nil
}

func (amd64Backend) Restore(pid int32, addr uint64, backup Backup) error {
	return inferior.WriteMemory(pid, uintptr(addr), backup.bytes)
}
