// Package sqlite opens the embedded SQLite backend. Statements are shared with
// the postgres backend through sqlstore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"foodwaste/internal/infra/persistence/sqlstore"
	"foodwaste/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "food_wastage.db"

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

var sqlOpen = sql.Open

// NewStore opens (creating when absent) the SQLite file at path and applies
// the schema. The pool is pinned to one connection so the single-writer file
// and in-memory databases behave identically.
func NewStore(path string) (*sqlstore.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sqlOpen("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	store, err := sqlstore.New(db, domain.DialectSQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewMemoryStore returns an empty schema-initialised in-memory store.
func NewMemoryStore() (*sqlstore.Store, error) {
	return NewStore(MemoryPath)
}
