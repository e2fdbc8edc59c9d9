// Package supervisor implements the top-level trace loop (C8): it spawns or
// attaches to the traced program, fans out wait4 events to each tracee's
// state machine, and owns the coverage and syscall-trace subsystems those
// state machines report into.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"tracehound/pkg/breakpoint"
	"tracehound/pkg/coverage"
	"tracehound/pkg/inferior"
	"tracehound/pkg/session"
	"tracehound/pkg/syscallid"
	"tracehound/pkg/syscalltrace"
	"tracehound/pkg/tracee"
)

// diagCacheSize bounds the recent-diagnostics cache used to dedupe repeated
// per-pid warnings (e.g. a tracee that keeps hitting the same protocol
// violation) so a noisy tracee can't flood the log.
const diagCacheSize = 256

// Supervisor owns the tracee set and every subsystem a tracee's state
// machine reports into. One Supervisor exists per invocation (§5:
// single-threaded, cooperative).
type Supervisor struct {
	cfg    Config
	logger *logrus.Logger

	table   *syscallid.Table
	backend breakpoint.Backend

	catalog       *coverage.Catalog
	covWriter     *coverage.Writer
	syscallOut    io.Closer
	syscallLogger syscalltrace.Logger

	store *session.Store
	runID string

	diag *lru.Cache[int32, string]

	tracees     map[int32]*tracee.Tracee
	dispatchers map[int32]*syscalltrace.Dispatcher
}

// New builds a Supervisor from cfg. It does not spawn anything; call Run.
func New(cfg Config, logger *logrus.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	diag, err := lru.New[int32, string](diagCacheSize)
	if err != nil {
		return nil, fmt.Errorf("allocate diagnostics cache: %w", err)
	}

	s := &Supervisor{
		cfg:         cfg,
		logger:      logger,
		table:       syscallid.Default(),
		backend:     breakpoint.DefaultBackend(),
		diag:        diag,
		tracees:     make(map[int32]*tracee.Tracee),
		dispatchers: make(map[int32]*syscalltrace.Dispatcher),
	}
	return s, nil
}

// Run spawns cfg.Program and drives the trace loop to completion, returning
// the traced program's exit status (not the supervisor's own exit code,
// which callers get back as a non-nil error).
func (s *Supervisor) Run() (int, error) {
	if err := s.setupCoverage(); err != nil {
		return 0, err
	}
	defer s.closeCoverage()

	if err := s.setupSyscallTrace(); err != nil {
		return 0, err
	}
	defer s.closeSyscallTrace()

	pid, ptmx, restoreTerm, err := s.spawnRoot()
	if err != nil {
		return 0, fmt.Errorf("supervisor: %w", err)
	}
	if restoreTerm != nil {
		defer restoreTerm()
	}
	if ptmx != nil {
		defer ptmx.Close()
	}

	if err := s.setupSession(pid); err != nil {
		return 0, err
	}
	defer s.closeSession()

	s.addTracee(pid)

	exitStatus, err := s.loop()
	if s.store != nil {
		_ = s.store.FinishRun(s.runID, wallClock(), len(s.dispatchers), exitStatus)
	}
	return exitStatus, err
}

func (s *Supervisor) setupCoverage() error {
	if s.cfg.CovDescriptorPath == "" || !s.cfg.BreakpointCoverage {
		return nil
	}
	descF, err := os.Open(s.cfg.CovDescriptorPath)
	if err != nil {
		return fmt.Errorf("open coverage descriptor: %w", err)
	}
	defer descF.Close()

	if s.cfg.TraceOutputPath == "" {
		return fmt.Errorf("breakpoint coverage requested without a trace output path")
	}
	traceF, err := os.Create(s.cfg.TraceOutputPath)
	if err != nil {
		return fmt.Errorf("create coverage trace output: %w", err)
	}
	writer, err := coverage.NewWriter(traceF, traceF)
	if err != nil {
		traceF.Close()
		return fmt.Errorf("open coverage trace writer: %w", err)
	}

	catalog := coverage.NewCatalog(writer, s.backend)
	reader := coverage.NewReader(descF, coverage.ReaderOptions{SingleShot: true})
	catalog.Load(reader)

	s.covWriter = writer
	s.catalog = catalog
	return nil
}

func (s *Supervisor) closeCoverage() {
	if s.covWriter != nil {
		if err := s.covWriter.Close(); err != nil {
			s.logger.WithError(err).Warn("closing coverage trace writer")
		}
	}
}

func (s *Supervisor) setupSyscallTrace() error {
	if !s.cfg.SyscallTrace {
		return nil
	}
	if s.cfg.SyscallTraceOutputPath == "" {
		s.syscallLogger = syscalltrace.NewStreamLogger(os.Stderr)
		return nil
	}
	fl, err := syscalltrace.NewFileLogger(s.cfg.SyscallTraceOutputPath)
	if err != nil {
		return fmt.Errorf("open syscall trace output: %w", err)
	}
	s.syscallLogger = fl
	s.syscallOut = fl
	return nil
}

func (s *Supervisor) closeSyscallTrace() {
	if s.syscallOut != nil {
		if err := s.syscallOut.Close(); err != nil {
			s.logger.WithError(err).Warn("closing syscall trace output")
		}
	}
}

// setupSession opens the run history database, if configured, and records
// the new run together with the root tracee's INITIAL_STOP event as one
// transaction: the two rows only make sense together, so nothing should be
// able to observe one without the other.
func (s *Supervisor) setupSession(rootPid int32) error {
	if s.cfg.SessionDBPath == "" {
		return nil
	}
	store, err := session.Open(session.DefaultConfig(s.cfg.SessionDBPath))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	s.store = store
	s.runID = newRunID()
	return s.store.CreateRunWithInitialEvent(context.Background(), session.Run{
		ID:        s.runID,
		Program:   s.cfg.Program,
		Args:      joinArgv(s.cfg.Args),
		CovPath:   s.cfg.CovDescriptorPath,
		TracePath: s.cfg.TraceOutputPath,
		StartedAt: wallClock(),
	}, rootPid, tracee.InitialStop.String(), "root process", wallClock())
}

func (s *Supervisor) closeSession() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.WithError(err).Warn("closing session store")
	}
}

// spawnRoot starts the traced program, either behind a PTY (interactive) or
// with inherited stdio, and returns its pid. ptmx/restoreTerm are non-nil
// only in the interactive case, in which case Run is responsible for
// copying the pty's I/O and restoring the terminal on exit.
func (s *Supervisor) spawnRoot() (int32, *os.File, func(), error) {
	if s.cfg.Interactive {
		return s.spawnInteractive()
	}
	_, pid, err := spawnWithRetry(s.cfg.Program, s.cfg.Args, inferior.SpawnOptions{Stdio: inferior.Inherit})
	if err != nil {
		return 0, nil, nil, err
	}
	return pid, nil, nil, nil
}

func (s *Supervisor) spawnInteractive() (int32, *os.File, func(), error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return 0, nil, nil, fmt.Errorf("open pty: %w", err)
	}
	defer tty.Close()

	_, pid, err := spawnWithRetry(s.cfg.Program, s.cfg.Args, inferior.SpawnOptions{Stdio: inferior.PTY, Tty: tty})
	if err != nil {
		ptmx.Close()
		return 0, nil, nil, err
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	winch <- syscall.SIGWINCH

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	restore := func() {
		signal.Stop(winch)
		if oldState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}
	if err != nil {
		// Non-interactive stdin (e.g. tests, piped input): proceed without
		// raw mode rather than failing the whole run.
		restore = func() { signal.Stop(winch) }
	}

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	go func() { _, _ = io.Copy(os.Stdout, ptmx) }()

	return pid, ptmx, restore, nil
}

// addTracee registers pid in INITIAL_STOP with a fresh dispatcher wired to
// the shared coverage catalog and syscall-trace subsystems.
func (s *Supervisor) addTracee(pid int32) {
	s.tracees[pid] = tracee.New(pid, s.rootFlags(), s.dispatcherFor(pid), s.catalog, s.backend)
}

// loop is the §4.8 wait-for-any-stop cycle. The supervisor is
// single-threaded (§5), so a direct blocking wait4(-1, ...) already gives
// "the next event from any managed tracee" without needing the
// peek-then-per-pid-confirm split a multi-threaded tracer would require.
func (s *Supervisor) loop() (int, error) {
	lastExit := 0
	for len(s.tracees) > 0 {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, 0, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.ECHILD) {
				break
			}
			return lastExit, fmt.Errorf("wait4: %w", err)
		}

		t, ok := s.tracees[int32(pid)]
		if !ok {
			// A stop for a pid the supervisor doesn't know about yet: the
			// kernel can report a forked child's own first stop before its
			// parent's PTRACE_EVENT_FORK group-stop is processed (§4.8).
			t = tracee.New(int32(pid), s.rootFlags(), s.dispatcherFor(int32(pid)), s.catalog, s.backend)
			s.tracees[int32(pid)] = t
		}

		ev := tracee.DecodeStop(ws)
		if ev.Kind == tracee.Exited {
			lastExit = ev.ExitStatus
		}

		actions, stepErr := t.Step(ev)
		if stepErr != nil {
			s.logProtocolIssue(int32(pid), stepErr)
		}

		if s.catalog != nil {
			for _, armErr := range s.catalog.ArmForPid(int32(pid)) {
				s.logProtocolIssue(int32(pid), armErr)
			}
		}

		for _, child := range actions.AddTracee {
			if _, exists := s.tracees[child]; !exists {
				s.tracees[child] = tracee.New(child, s.rootFlags(), s.dispatcherFor(child), s.catalog, s.backend)
			}
			if s.store != nil {
				_ = s.store.RecordTraceeEvent(s.runID, child, tracee.InitialStop.String(), fmt.Sprintf("forked from %d", pid), wallClock())
			}
		}

		if actions.RemoveSelf {
			delete(s.tracees, int32(pid))
			delete(s.dispatchers, int32(pid))
			if s.store != nil {
				_ = s.store.RecordTraceeEvent(s.runID, int32(pid), tracee.Exited.String(), "", wallClock())
			}
		}
	}
	return lastExit, nil
}

func (s *Supervisor) rootFlags() tracee.DebugFlags {
	var flags tracee.DebugFlags
	if s.cfg.BreakpointCoverage {
		flags |= tracee.TraceBreakpoints
	}
	if s.cfg.SyscallTrace {
		flags |= tracee.TraceSyscalls
	}
	if s.cfg.FollowFork {
		flags |= tracee.FollowFork
	}
	return flags
}

func (s *Supervisor) dispatcherFor(pid int32) *syscalltrace.Dispatcher {
	if !s.cfg.SyscallTrace {
		return nil
	}
	if d, ok := s.dispatchers[pid]; ok {
		return d
	}
	d := syscalltrace.NewDispatcher(pid, s.table, nil, nil, nil, s.syscallLogger)
	s.dispatchers[pid] = d
	return d
}

// logProtocolIssue logs a per-tracee error unless it is identical to the
// last message logged for the same pid; the diagnostics cache keeps that
// last message per pid, and its LRU eviction caps memory (§7: protocol
// violations are logged, not fatal).
func (s *Supervisor) logProtocolIssue(pid int32, err error) {
	msg := err.Error()
	if prev, ok := s.diag.Get(pid); ok && prev == msg {
		return
	}
	s.diag.Add(pid, msg)
	s.logger.WithFields(logrus.Fields{"pid": pid}).Warn(msg)
}

func joinArgv(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
