// Package sqlitestore keeps the rollup document in a single SQLite row.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rollup_document (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

// Store implements store.Store on SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// Open opens or creates the database at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("sqlitestore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open database: %w", err)
	}
	// One connection: an in-memory database is per connection, and the
	// document has a single writer anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func readDocument(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (*types.Document, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM rollup_document WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: read document: %w", err)
	}

	doc := types.NewDocument()
	if err := json.Unmarshal([]byte(body), doc); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*types.Document, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, store.ErrClosed
	}
	return readDocument(ctx, s.db)
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(doc *types.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	doc, err := readDocument(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	doc.Normalize()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rollup_document (id, body, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlitestore: write document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

// Close closes the database. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
