//go:build arm64

package breakpoint

import "tracehound/pkg/inferior"

// trapInstr is the 4-byte little-endian encoding of "BRK #0", the ARM64
// breakpoint trap (§4.3).
var trapInstr = []byte{0x00, 0x00, 0x20, 0xd4}

type arm64Backend struct{}

// DefaultBackend returns the trap-instruction backend for this build's
// architecture, chosen once at supervisor init (§4.2, §9).
func DefaultBackend() Backend { return arm64Backend{} }

func (arm64Backend) TrapSize() int { return len(trapInstr) }

func (arm64Backend) Inject(pid int32, addr uint64) (Backup, error) {
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

func (arm64Backend) Restore(pid int32, addr uint64, backup Backup) error {
	return inferior.WriteMemory(pid, uintptr(addr), backup.bytes)
}
