package core

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"foodwaste/pkg/domain"
)

func TestOpenPersistentStoreDefaultSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "food.db")
	store, err := OpenPersistentStore(context.Background(), StorageConfig{SQLitePath: path})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Dialect() != domain.DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %s", store.Dialect())
	}
	ids, err := store.ListingIDs(context.Background())
	if err != nil {
		t.Fatalf("schema should be applied: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty table, got %v", ids)
	}
}

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.DistinctLocations(context.Background()); err != nil {
		t.Fatalf("memory store query: %v", err)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	_, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "mongo"})
	if err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}
