//go:build amd64

package syscallid

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCanonicalizeKnown(t *testing.T) {
	table := Default()
	if got := table.Canonicalize(uint64(unix.SYS_WRITE)); got != Write {
		t.Errorf("Canonicalize(SYS_WRITE) = %v, want Write", got)
	}
	if got := table.Canonicalize(uint64(unix.SYS_OPENAT)); got != OpenAt {
		t.Errorf("Canonicalize(SYS_OPENAT) = %v, want OpenAt", got)
	}
}

func TestCanonicalizeUnknown(t *testing.T) {
	table := Default()
	if got := table.Canonicalize(0xdeadbeef); got != NoSyscall {
		t.Errorf("Canonicalize(unrecognized) = %v, want NoSyscall", got)
	}
}

func TestCanonicalizeNilTable(t *testing.T) {
	var table *Table
	if got := table.Canonicalize(uint64(unix.SYS_READ)); got != NoSyscall {
		t.Errorf("Canonicalize on nil table = %v, want NoSyscall", got)
	}
}
