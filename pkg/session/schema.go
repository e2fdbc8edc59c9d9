package session

import "fmt"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	program TEXT NOT NULL,
	args TEXT NOT NULL DEFAULT '',
	cov_path TEXT NOT NULL DEFAULT '',
	trace_path TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	ended_at INTEGER,
	tracee_count INTEGER NOT NULL DEFAULT 0,
	exit_code INTEGER
);

CREATE TABLE IF NOT EXISTS tracee_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	pid INTEGER NOT NULL,
	state TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tracee_events_run ON tracee_events(run_id, at);
`

// initSchema initializes the database schema.
func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
