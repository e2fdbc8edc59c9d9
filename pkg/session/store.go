// Package session persists a run history for the supervisor: one row per
// invocation plus a log of tracee lifecycle transitions, so past runs can be
// listed without re-parsing their coverage trace files.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Common errors
var (
	ErrNotFound = errors.New("run not found")
)

// Store provides all database operations for the run history.
type Store struct {
	db *sql.DB
}

// Config holds session store configuration.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

// Open opens or creates a SQLite database for the run history.
func Open(cfg Config) (*Store, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_synchronous=NORMAL",
		cfg.Path,
		cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	// Single connection: the supervisor is single-threaded and writes are
	// already serialized by the trace loop, so there's no concurrency to
	// exploit and WAL contention is simpler to avoid outright.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes a function within a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting CreateRun and
// RecordTraceeEvent run standalone or as part of a WithTx transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Run is one supervisor invocation.
type Run struct {
	ID          string
	Program     string
	Args        string
	CovPath     string
	TracePath   string
	StartedAt   int64
	EndedAt     sql.NullInt64
	TraceeCount int
	ExitCode    sql.NullInt64
}

// CreateRun inserts a new run row at startup.
func (s *Store) CreateRun(r Run) error {
	return createRun(s.db, r)
}

func createRun(ex execer, r Run) error {
	_, err := ex.Exec(`
		INSERT INTO runs (id, program, args, cov_path, trace_path, started_at, tracee_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, r.ID, r.Program, r.Args, r.CovPath, r.TracePath, r.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the end of a run.
func (s *Store) FinishRun(id string, endedAt int64, traceeCount int, exitCode int) error {
	_, err := s.db.Exec(`
		UPDATE runs SET ended_at = ?, tracee_count = ?, exit_code = ? WHERE id = ?
	`, endedAt, traceeCount, exitCode, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordTraceeEvent appends one tracee lifecycle transition.
func (s *Store) RecordTraceeEvent(runID string, pid int32, state string, detail string, at int64) error {
	return recordTraceeEvent(s.db, runID, pid, state, detail, at)
}

func recordTraceeEvent(ex execer, runID string, pid int32, state string, detail string, at int64) error {
	_, err := ex.Exec(`
		INSERT INTO tracee_events (run_id, pid, state, detail, at) VALUES (?, ?, ?, ?, ?)
	`, runID, pid, state, detail, at)
	if err != nil {
		return fmt.Errorf("failed to record tracee event: %w", err)
	}
	return nil
}

// CreateRunWithInitialEvent inserts the run row and its first tracee
// lifecycle event (the root process reaching INITIAL_STOP) as a single
// transaction via WithTx, so a crash between the two can never leave a run
// row with no corresponding tracee history.
func (s *Store) CreateRunWithInitialEvent(ctx context.Context, r Run, pid int32, state string, detail string, at int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := createRun(tx, r); err != nil {
			return err
		}
		return recordTraceeEvent(tx, r.ID, pid, state, detail, at)
	})
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, program, args, cov_path, trace_path, started_at, ended_at, tracee_count, exit_code
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Program, &r.Args, &r.CovPath, &r.TracePath,
			&r.StartedAt, &r.EndedAt, &r.TraceeCount, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(id string) (Run, error) {
	var r Run
	err := s.db.QueryRow(`
		SELECT id, program, args, cov_path, trace_path, started_at, ended_at, tracee_count, exit_code
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Program, &r.Args, &r.CovPath, &r.TracePath,
		&r.StartedAt, &r.EndedAt, &r.TraceeCount, &r.ExitCode)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}
