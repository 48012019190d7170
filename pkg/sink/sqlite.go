package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const createRecords = `
CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, kind);`

// SQLite stores rows as JSON documents in a records table.
type SQLite struct {
	db      *sql.DB
	insert  *sql.Stmt
	kind    string
	columns []string
	runID   string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path, kind string, columns []string, runID string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createRecords); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}
	insert, err := db.PrepareContext(ctx, `INSERT INTO records (run_id, kind, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	return &SQLite{db: db, insert: insert, kind: kind, columns: columns, runID: runID}, nil
}

func (s *SQLite) Write(ctx context.Context, row Row) error {
	data, err := json.Marshal(project(row, s.columns, s.runID))
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	if _, err := s.insert.ExecContext(ctx, s.runID, s.kind, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("inserting row: %w", err)
	}
	return nil
}

// Count returns the number of rows stored for this run and kind.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE run_id = ? AND kind = ?`, s.runID, s.kind).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	s.insert.Close()
	return s.db.Close()
}
