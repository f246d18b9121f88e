// Package store persists pipeline runs and extracted QA pairs in a single
// SQLite database file.
//
// The store is the durable knowledge base behind the flat JSON exports:
// each processing run records its provenance (input path, counts, timing)
// and the pairs it extracted. The MCP server and the stats subcommand read
// from the same file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hurttlocker/chatmine/internal/qa"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.chatmine/chatmine.db"

// Run records one pipeline invocation.
type Run struct {
	ID         string
	InputPath  string
	StartedAt  time.Time
	FinishedAt time.Time
	Messages   int
	Sessions   int
	Pairs      int
	Dropped    int
}

// StoredPair is a persisted QA pair with its database identity.
type StoredPair struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	CustomerID string    `json:"customer_id"`
	AgentID    string    `json:"agent_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Tags       []string  `json:"tags"`
	Score      float64   `json:"score"`
	AskedAt    time.Time `json:"asked_at"`
}

// Stats holds aggregate store counters.
type Stats struct {
	Runs        int64 `json:"runs"`
	Pairs       int64 `json:"pairs"`
	DBSizeBytes int64 `json:"db_size_bytes"`
}

// Store is the persistence interface for runs and pairs.
type Store interface {
	// SaveRun stores a run and its pairs atomically, returning the run ID.
	SaveRun(ctx context.Context, run *Run, pairs []qa.Pair) (string, error)

	// RecentPairs returns the newest pairs, most recent run first.
	RecentPairs(ctx context.Context, limit int) ([]*StoredPair, error)

	// SearchPairs returns pairs whose question or answer contains query
	// (case-sensitive substring; CJK-safe).
	SearchPairs(ctx context.Context, query string, limit int) ([]*StoredPair, error)

	// Stats returns aggregate counters.
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Config holds configuration for New.
type Config struct {
	// DBPath is the database file; ":memory:" for tests.
	DBPath string
}

// New opens (and if needed creates) the store.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = expandPath(cfg.DBPath)

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores the run row and its pairs in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, pairs []qa.Pair) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, started_at, finished_at,
			message_count, session_count, pair_count, dropped_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Messages, run.Sessions, run.Pairs, run.Dropped,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO qa_pairs (run_id, customer_id, agent_id, question,
			answer, tags, score, asked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing pair insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return "", fmt.Errorf("encoding tags: %w", err)
		}
		askedAt := ""
		if !p.Timestamp.IsZero() {
			askedAt = p.Timestamp.UTC().Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, p.CustomerID, p.AgentID,
			p.Question, p.Answer, string(tags), p.Score, askedAt); err != nil {
			return "", fmt.Errorf("inserting pair: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// RecentPairs returns the newest pairs by insertion order.
func (s *SQLiteStore) RecentPairs(ctx context.Context, limit int) ([]*StoredPair, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, customer_id, agent_id, question, answer, tags, score, asked_at
		FROM qa_pairs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent pairs: %w", err)
	}
	defer rows.Close()
	return scanPairs(rows)
}

// SearchPairs does substring search over question and answer text. LIKE
// with no tokenizer keeps CJK queries exact, which an FTS index with the
// default unicode61 tokenizer cannot do.
func (s *SQLiteStore) SearchPairs(ctx context.Context, query string, limit int) ([]*StoredPair, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, customer_id, agent_id, question, answer, tags, score, asked_at
		FROM qa_pairs
		WHERE question LIKE ? ESCAPE '\' OR answer LIKE ? ESCAPE '\'
		ORDER BY score DESC, id DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching pairs: %w", err)
	}
	defer rows.Close()
	return scanPairs(rows)
}

// Stats returns aggregate counters for observability.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qa_pairs`).Scan(&st.Pairs); err != nil {
		return nil, fmt.Errorf("counting pairs: %w", err)
	}
	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = fi.Size()
		}
	}
	return st, nil
}

func scanPairs(rows *sql.Rows) ([]*StoredPair, error) {
	var out []*StoredPair
	for rows.Next() {
		p := &StoredPair{}
		var tags, askedAt string
		if err := rows.Scan(&p.ID, &p.RunID, &p.CustomerID, &p.AgentID,
			&p.Question, &p.Answer, &tags, &p.Score, &askedAt); err != nil {
			return nil, fmt.Errorf("scanning pair: %w", err)
		}
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags: %w", err)
			}
		}
		if askedAt != "" {
			if t, err := time.Parse(time.RFC3339, askedAt); err == nil {
				p.AskedAt = t
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
