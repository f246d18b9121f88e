package store

import "fmt"

// migrate creates all tables if they don't exist. Every statement is
// idempotent, so reopening an existing database is a no-op.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			input_path     TEXT NOT NULL,
			started_at     TEXT NOT NULL,
			finished_at    TEXT NOT NULL,
			message_count  INTEGER NOT NULL DEFAULT 0,
			session_count  INTEGER NOT NULL DEFAULT 0,
			pair_count     INTEGER NOT NULL DEFAULT 0,
			dropped_count  INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS qa_pairs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			customer_id  TEXT NOT NULL DEFAULT '',
			agent_id     TEXT NOT NULL DEFAULT '',
			question     TEXT NOT NULL,
			answer       TEXT NOT NULL,
			tags         TEXT NOT NULL DEFAULT '[]',
			score        REAL NOT NULL DEFAULT 0,
			asked_at     TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_qa_pairs_run ON qa_pairs(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_qa_pairs_asked ON qa_pairs(asked_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}
