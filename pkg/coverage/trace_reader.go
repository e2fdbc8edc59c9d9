package coverage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// TraceRecord is one decoded entry from a binary coverage trace file: either
// a module definition or a hit, mirroring the two record kinds Writer emits.
type TraceRecord struct {
	IsModuleDef bool

	// Set when IsModuleDef.
	ModuleID   uint16
	ModuleName string
	BaseAddr   uint64

	// Set when !IsModuleDef (a hit record).
	Pid     int32
	AbsAddr uint64
}

// TraceReader decodes a trace file written by Writer (§6).
type TraceReader struct {
	r *bufio.Reader
}

// NewTraceReader validates the header and returns a cursor over the
// remaining records.
func NewTraceReader(r io.Reader) (*TraceReader, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(traceMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read trace header: %w", err)
	}
	if string(magic) != traceMagic {
		return nil, fmt.Errorf("not a coverage trace file (bad magic)")
	}
	version, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read trace version: %w", err)
	}
	if version != traceVersion {
		return nil, fmt.Errorf("unsupported trace version %d", version)
	}
	return &TraceReader{r: br}, nil
}

// Next returns the next record. It returns io.EOF (unwrapped, so
// errors.Is(err, io.EOF) holds) once the stream is exhausted cleanly.
func (t *TraceReader) Next() (*TraceRecord, error) {
	tag, err := t.r.ReadByte()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read record tag: %w", err)
	}

	switch tag {
	case recModuleDef:
		var idBuf [2]byte
		var baseBuf [8]byte
		var lenBuf [2]byte
		if _, err := io.ReadFull(t.r, idBuf[:]); err != nil {
			return nil, fmt.Errorf("read module id: %w", err)
		}
		if _, err := io.ReadFull(t.r, baseBuf[:]); err != nil {
			return nil, fmt.Errorf("read module base: %w", err)
		}
		if _, err := io.ReadFull(t.r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("read module name length: %w", err)
		}
		nameLen := binary.LittleEndian.Uint16(lenBuf[:])
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(t.r, name); err != nil {
			return nil, fmt.Errorf("read module name: %w", err)
		}
		return &TraceRecord{
			IsModuleDef: true,
			ModuleID:    binary.LittleEndian.Uint16(idBuf[:]),
			BaseAddr:    binary.LittleEndian.Uint64(baseBuf[:]),
			ModuleName:  string(name),
		}, nil

	case recHit:
		var pidBuf [4]byte
		var idBuf [2]byte
		var addrBuf [8]byte
		if _, err := io.ReadFull(t.r, pidBuf[:]); err != nil {
			return nil, fmt.Errorf("read hit pid: %w", err)
		}
		if _, err := io.ReadFull(t.r, idBuf[:]); err != nil {
			return nil, fmt.Errorf("read hit module id: %w", err)
		}
		if _, err := io.ReadFull(t.r, addrBuf[:]); err != nil {
			return nil, fmt.Errorf("read hit address: %w", err)
		}
		return &TraceRecord{
			Pid:      int32(binary.LittleEndian.Uint32(pidBuf[:])),
			ModuleID: binary.LittleEndian.Uint16(idBuf[:]),
			AbsAddr:  binary.LittleEndian.Uint64(addrBuf[:]),
		}, nil

	default:
		return nil, fmt.Errorf("unknown trace record tag %#x", tag)
	}
}
