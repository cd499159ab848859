package core

import (
	"context"
	"fmt"

	"foodwaste/internal/infra/persistence/postgres"
	"foodwaste/internal/infra/persistence/sqlite"
	"foodwaste/internal/infra/persistence/sqlstore"
	"foodwaste/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory sqlite (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and locates the backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured backend with its schema applied.
// An empty driver defaults to sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig) (domain.PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	var (
		store *sqlstore.Store
		err   error
	)
	switch driver {
	case StorageMemory:
		store, err = sqlite.NewMemoryStore()
	case StorageSQLite:
		store, err = sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		store, err = postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
