// Package loader performs the offline bulk load: four CSV objects are read
// from a blob store, parsed, and swapped into the database in one
// transaction. Any problem aborts the whole load.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"foodwaste/internal/blob"
	"foodwaste/pkg/domain"
)

// Default object names, resolved under Sources.Prefix.
const (
	DefaultProviders = "providers_data.csv"
	DefaultReceivers = "receivers_data.csv"
	DefaultListings  = "food_listings_data.csv"
	DefaultClaims    = "claims_data.csv"
)

// Sources names the four input objects.
type Sources struct {
	Providers string
	Receivers string
	Listings  string
	Claims    string
}

// DefaultSources returns the default object names joined under prefix.
func DefaultSources(prefix string) Sources {
	join := func(name string) string {
		if prefix == "" {
			return name
		}
		return path.Join(prefix, name)
	}
	return Sources{
		Providers: join(DefaultProviders),
		Receivers: join(DefaultReceivers),
		Listings:  join(DefaultListings),
		Claims:    join(DefaultClaims),
	}
}

// Summary reports how many rows each table received.
type Summary struct {
	Providers int `json:"providers"`
	Receivers int `json:"receivers"`
	Listings  int `json:"food_listings"`
	Claims    int `json:"claims"`
}

// Loader wires a blob store to a dataset store.
type Loader struct {
	blobs   blob.Store
	store   domain.DatasetStore
	sources Sources
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithSources overrides the input object names.
func WithSources(sources Sources) Option {
	return func(l *Loader) { l.sources = sources }
}

// WithLogger sets the zap logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New constructs a Loader reading DefaultSources("") unless overridden.
func New(blobs blob.Store, store domain.DatasetStore, opts ...Option) *Loader {
	l := &Loader{blobs: blobs, store: store, sources: DefaultSources(""), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Read fetches and parses all four sources without touching the database.
func (l *Loader) Read(ctx context.Context) (domain.Dataset, error) {
	var data domain.Dataset
	var err error
	if data.Providers, err = readSource(ctx, l, l.sources.Providers, parseProviders); err != nil {
		return domain.Dataset{}, err
	}
	if data.Receivers, err = readSource(ctx, l, l.sources.Receivers, parseReceivers); err != nil {
		return domain.Dataset{}, err
	}
	if data.Listings, err = readSource(ctx, l, l.sources.Listings, parseListings); err != nil {
		return domain.Dataset{}, err
	}
	if data.Claims, err = readSource(ctx, l, l.sources.Claims, parseClaims); err != nil {
		return domain.Dataset{}, err
	}
	return data, nil
}

// Load ensures the schema and replaces the four tables with the parsed inputs.
func (l *Loader) Load(ctx context.Context) (Summary, error) {
	start := time.Now()
	data, err := l.Read(ctx)
	if err != nil {
		l.logger.Error("load aborted", zap.Error(err))
		return Summary{}, err
	}
	if err := l.store.EnsureSchema(ctx); err != nil {
		l.logger.Error("ensure schema failed", zap.Error(err))
		return Summary{}, fmt.Errorf("ensure schema: %w", err)
	}
	if err := l.store.ReplaceAll(ctx, data); err != nil {
		l.logger.Error("replace tables failed", zap.Error(err))
		return Summary{}, fmt.Errorf("replace tables: %w", err)
	}
	summary := Summary{
		Providers: len(data.Providers),
		Receivers: len(data.Receivers),
		Listings:  len(data.Listings),
		Claims:    len(data.Claims),
	}
	l.logger.Info("dataset loaded",
		zap.Int("providers", summary.Providers),
		zap.Int("receivers", summary.Receivers),
		zap.Int("food_listings", summary.Listings),
		zap.Int("claims", summary.Claims),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

func readSource[T any](ctx context.Context, l *Loader, key string, parse func(io.Reader, string) ([]T, error)) ([]T, error) {
	_, body, err := l.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("input %s missing: %w", key, err)
		}
		return nil, fmt.Errorf("open input %s: %w", key, err)
	}
	defer func() { _ = body.Close() }()
	rows, err := parse(body, key)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("parsed input", zap.String("source", key), zap.Int("rows", len(rows)))
	return rows, nil
}
