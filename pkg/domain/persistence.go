package domain

import "context"

// Dialect names the SQL flavour a store speaks. Report queries are compiled
// per dialect.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Querier executes read-only statements and returns rows positionally.
type Querier interface {
	Dialect() Dialect
	QueryRows(ctx context.Context, query string, args ...any) ([][]any, error)
}

// ListingStore is the write surface used by the listing service. Each method
// issues a single statement; there is no multi-statement transaction.
type ListingStore interface {
	DistinctLocations(ctx context.Context) ([]string, error)
	ListListings(ctx context.Context, location *string) ([]FoodListing, error)
	ListingIDs(ctx context.Context) ([]int64, error)
	InsertListing(ctx context.Context, listing FoodListing) (FoodListing, error)
	UpdateListingQuantity(ctx context.Context, id, quantity int64) (bool, error)
	DeleteListing(ctx context.Context, id int64) (bool, error)
}

// DatasetStore supports the loader's all-or-nothing replace.
type DatasetStore interface {
	EnsureSchema(ctx context.Context) error
	ReplaceAll(ctx context.Context, data Dataset) error
	ExportAll(ctx context.Context) (Dataset, error)
}

// PersistentStore is the full capability set offered by a storage backend.
type PersistentStore interface {
	Querier
	ListingStore
	DatasetStore
	Close() error
}
