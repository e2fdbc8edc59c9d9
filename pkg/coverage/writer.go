package coverage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Coverage trace output framing (§6): magic + version header, then on first
// reference to a module id a definition record, then hit records.
const (
	traceMagic        = "TRHD"
	traceVersion byte = 1

	recModuleDef byte = 0xFE
	recHit       byte = 0x01
)

// Writer is the append-only binary coverage trace sink (C5). It assigns
// stable module ids, tracks each module's base address (set once, on first
// observation), and records (pid, module-id, abs-addr) hit tuples. Safe for
// concurrent use: per §4.5 it may be shared across tracee state machines.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
	wc io.Closer

	nextID  uint16
	ids     map[string]uint16
	bases   map[uint16]uint64
	defined map[uint16]bool
}

// NewWriter wraps w as a coverage trace sink and emits the header
// immediately. wc, if non-nil, is closed by Close.
func NewWriter(w io.Writer, wc io.Closer) (*Writer, error) {
	cw := &Writer{
		w:       bufio.NewWriter(w),
		wc:      wc,
		ids:     make(map[string]uint16),
		bases:   make(map[uint16]uint64),
		defined: make(map[uint16]bool),
	}
	if _, err := cw.w.WriteString(traceMagic); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	if err := cw.w.WriteByte(traceVersion); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return cw, nil
}

// GetModuleID returns the stable id for name, allocating a new one
// monotonically on first sight (§4.5, §8 property 8).
func (w *Writer) GetModuleID(name string) uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.getModuleIDLocked(name)
}

func (w *Writer) getModuleIDLocked(name string) uint16 {
	if id, ok := w.ids[name]; ok {
		return id
	}
	id := w.nextID
	w.nextID++
	w.ids[name] = id
	return id
}

// UpdateModuleBaseAddr records the runtime base address for name, the first
// time it is observed (§3 "Module descriptor": set-once).
func (w *Writer) UpdateModuleBaseAddr(name string, addr uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.getModuleIDLocked(name)
	if _, ok := w.bases[id]; !ok {
		w.bases[id] = addr
	}
}

// RecordCov appends a hit tuple. Per §8 property 3, the module table entry
// for moduleID is flushed before this or any prior hit referencing it.
func (w *Writer) RecordCov(pid int32, moduleID uint16, absAddr uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureModuleDefinedLocked(moduleID); err != nil {
		return err
	}

	var hdr [1 + 4 + 2 + 8]byte
	hdr[0] = recHit
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(pid))
	binary.LittleEndian.PutUint16(hdr[5:7], moduleID)
	binary.LittleEndian.PutUint64(hdr[7:15], absAddr)
	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write coverage hit: %w", err)
	}
	return w.w.Flush()
}

// ensureModuleDefinedLocked emits the module's definition record before its
// first hit, resolving the name by reverse lookup of the id map.
func (w *Writer) ensureModuleDefinedLocked(id uint16) error {
	if w.defined[id] {
		return nil
	}
	var name string
	for n, mid := range w.ids {
		if mid == id {
			name = n
			break
		}
	}
	base := w.bases[id]

	nameBytes := []byte(name)
	hdr := make([]byte, 1+2+8+2, 1+2+8+2+len(nameBytes))
	hdr[0] = recModuleDef
	binary.LittleEndian.PutUint16(hdr[1:3], id)
	binary.LittleEndian.PutUint64(hdr[3:11], base)
	binary.LittleEndian.PutUint16(hdr[11:13], uint16(len(nameBytes)))
	hdr = append(hdr, nameBytes...)

	if _, err := w.w.Write(hdr); err != nil {
		return fmt.Errorf("write module def %s: %w", name, err)
	}
	w.defined[id] = true
	return nil
}

// Close flushes buffered output and closes the underlying sink, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.wc != nil {
		return w.wc.Close()
	}
	return nil
}
