package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		policy TEXT NOT NULL,
		title TEXT NOT NULL,
		mode TEXT NOT NULL,
		total INTEGER NOT NULL,
		started_at TEXT,
		finished_at TEXT,
		archived_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS run_records (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		task_name TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		priority INTEGER NOT NULL,
		category TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_notices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		task_name TEXT NOT NULL,
		resource TEXT,
		requested INTEGER,
		available INTEGER,
		known INTEGER,
		missing TEXT,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_notices_run_id ON run_notices(run_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
