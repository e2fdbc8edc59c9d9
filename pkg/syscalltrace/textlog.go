package syscalltrace

import (
	"fmt"
	"io"
	"os"
)

// Logger receives the human-readable syscall trace stream, one line per
// enter/exit (distinct from the structured logrus logging the rest of the
// supervisor uses — this is the dedicated `--syscall-trace` output format).
// Grounded on the teacher's Logger/StreamLogger/FileLogger split.
type Logger interface {
	LogEnter(s *State)
	LogExit(s *State)
}

// StreamLogger writes trace lines to an io.Writer.
type StreamLogger struct {
	Out io.Writer
}

// NewStreamLogger creates a logger over an arbitrary writer.
func NewStreamLogger(out io.Writer) *StreamLogger {
	return &StreamLogger{Out: out}
}

func (l *StreamLogger) LogEnter(s *State) {
	args := make([]string, s.NArgs)
	for i := range args {
		args[i] = fmt.Sprintf("0x%x", s.Args[i])
	}
	suffix := ""
	if s.Blocked {
		suffix = " [blocked]"
	}
	fmt.Fprintf(l.Out, "[%-5d] -> %s(%s)%s\n", s.Pid, s.ID, joinArgs(args), suffix)
}

func (l *StreamLogger) LogExit(s *State) {
	peer := ""
	if s.PeerAddr != nil && s.PeerAddr.Addr != "" {
		peer = fmt.Sprintf(" peer=%s:%d", s.PeerAddr.Addr, s.PeerAddr.Port)
	}
	if s.Ret < 0 {
		fmt.Fprintf(l.Out, "[%-5d] <- %s = %d (errno %d)%s\n", s.Pid, s.ID, s.Ret, -s.Ret, peer)
		return
	}
	fmt.Fprintf(l.Out, "[%-5d] <- %s = %d%s\n", s.Pid, s.ID, s.Ret, peer)
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

// FileLogger writes the trace stream to a file.
type FileLogger struct {
	*StreamLogger
	file *os.File
}

// NewFileLogger opens path for append and wraps it as a Logger.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open syscall trace file %s: %w", path, err)
	}
	return &FileLogger{StreamLogger: NewStreamLogger(f), file: f}, nil
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	return l.file.Close()
}
