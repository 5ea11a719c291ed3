// Package sqlite provides an embedded, file-backed key-value store for household snapshots.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"example.com/nannytracker/internal/persistence/kv"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_entries (
	entry_key  TEXT PRIMARY KEY,
	entry_value BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store implements kv.Store on a SQLite database file.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (and creates if needed) the SQLite store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT entry_value FROM kv_entries WHERE entry_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

const (
	upsertEntry = `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at`
	deleteEntry = `DELETE FROM kv_entries WHERE entry_key = ?`
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, s.sqlDB, key, value)
}

// Remove implements kv.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.remove(ctx, s.sqlDB, key)
}

// Apply implements kv.Store inside one transaction.
func (s *Store) Apply(ctx context.Context, ops []kv.Op) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, op := range ops {
		if op.Value == nil {
			err = s.remove(ctx, tx, op.Key)
		} else {
			err = s.set(ctx, tx, op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) set(ctx context.Context, db execer, key string, value []byte) error {
	if _, err := db.ExecContext(ctx, upsertEntry, key, value, s.now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, db execer, key string) error {
	if _, err := db.ExecContext(ctx, deleteEntry, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
