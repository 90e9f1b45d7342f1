package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS responses (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL,
	answers    TEXT NOT NULL
);`

// SQLite appends rows to a local SQLite database. The identity columns are
// stored as-is and the per-question answers as a JSON object keyed by the
// question keys from the header.
type SQLite struct {
	db   *sql.DB
	keys []string
}

func NewSQLite(path string, header []string) (*SQLite, error) {
	if len(header) < 3 {
		return nil, fmt.Errorf("sqlite sink: header needs at least the identity columns")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite sink: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite sink: create schema: %w", err)
	}
	return &SQLite{db: db, keys: header[3:]}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Append(ctx context.Context, row []string) error {
	if len(row) < 3 {
		return fmt.Errorf("sqlite sink: short row (%d fields)", len(row))
	}

	answers := make(map[string]string, len(s.keys))
	for i, key := range s.keys {
		if 3+i < len(row) {
			answers[key] = row[3+i]
		} else {
			answers[key] = ""
		}
	}
	blob, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("sqlite sink: encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (created_at, user_id, username, answers) VALUES (?, ?, ?, ?)`,
		row[0], row[1], row[2], string(blob),
	)
	if err != nil {
		return fmt.Errorf("sqlite sink: insert: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
