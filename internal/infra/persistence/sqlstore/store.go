// Package sqlstore implements domain.PersistentStore over database/sql. The
// sqlite and postgres packages open the connection and pick the dialect; all
// statements live here so both backends stay in lock-step.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"foodwaste/internal/entitymodel/sqlbundle"
	"foodwaste/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the four tables through a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect domain.Dialect
}

// New wraps an open database handle. The caller keeps ownership of driver
// registration; Close releases db.
func New(db *sql.DB, dialect domain.Dialect) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	switch dialect {
	case domain.DialectSQLite, domain.DialectPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Dialect reports the SQL flavour spoken by the backend.
func (s *Store) Dialect() domain.Dialect { return s.dialect }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Rebind rewrites '?' placeholders to the dialect's form. Queries passed here
// must not contain '?' inside string literals.
func Rebind(dialect domain.Dialect, query string) string {
	if dialect != domain.DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) rebind(query string) string { return Rebind(s.dialect, query) }

// EnsureSchema creates the four tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.For(s.dialect)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// QueryRows runs a read-only statement and returns every row as a slice of
// driver values in select-list order.
func (s *Store) QueryRows(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// DistinctLocations returns every Location present in food_listings, sorted.
func (s *Store) DistinctLocations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT Location FROM food_listings WHERE Location IS NOT NULL ORDER BY Location`)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

const listingColumns = `Food_ID, Food_Name, Quantity, Expiry_Date, Provider_ID, Provider_Type, Location, Food_Type, Meal_Type`

// ListListings returns listings ordered by Food_ID. A nil location returns
// every row; otherwise only rows whose Location equals it exactly, the empty
// string included.
func (s *Store) ListListings(ctx context.Context, location *string) ([]domain.FoodListing, error) {
	query := `SELECT ` + listingColumns + ` FROM food_listings`
	var args []any
	if location != nil {
		query += ` WHERE Location = ?`
		args = append(args, *location)
	}
	query += ` ORDER BY Food_ID`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.FoodListing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, listing)
	}
	return out, rows.Err()
}

// ListingIDs returns the current Food_ID values in ascending order.
func (s *Store) ListingIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT Food_ID FROM food_listings ORDER BY Food_ID`)
	if err != nil {
		return nil, fmt.Errorf("select listing ids: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan listing id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertListing appends a row and returns it with the store-assigned Food_ID.
func (s *Store) InsertListing(ctx context.Context, listing domain.FoodListing) (domain.FoodListing, error) {
	query := s.rebind(`INSERT INTO food_listings (Food_Name, Quantity, Expiry_Date, Provider_ID, Provider_Type, Location, Food_Type, Meal_Type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING Food_ID`)
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		listing.FoodName,
		listing.Quantity,
		domain.FormatTimestamp(listing.ExpiryDate),
		listing.ProviderID,
		listing.ProviderType,
		listing.Location,
		listing.FoodType,
		listing.MealType,
	).Scan(&id)
	if err != nil {
		return domain.FoodListing{}, fmt.Errorf("insert listing: %w", err)
	}
	listing.ID = id
	return listing, nil
}

// UpdateListingQuantity overwrites Quantity on the matching row only. The
// boolean reports whether a row matched.
func (s *Store) UpdateListingQuantity(ctx context.Context, id, quantity int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE food_listings SET Quantity = ? WHERE Food_ID = ?`), quantity, id)
	if err != nil {
		return false, fmt.Errorf("update listing %d: %w", id, err)
	}
	return affected(res)
}

// DeleteListing removes the matching row. The boolean reports whether a row matched.
func (s *Store) DeleteListing(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM food_listings WHERE Food_ID = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete listing %d: %w", id, err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (domain.FoodListing, error) {
	var l domain.FoodListing
	var name, expiry, providerType, loc, food, meal sql.NullString
	var quantity, providerID sql.NullInt64
	if err := row.Scan(&l.ID, &name, &quantity, &expiry, &providerID, &providerType, &loc, &food, &meal); err != nil {
		return domain.FoodListing{}, fmt.Errorf("scan listing: %w", err)
	}
	expiryDate, err := domain.ParseTimestamp(expiry.String)
	if err != nil {
		return domain.FoodListing{}, fmt.Errorf("listing %d expiry: %w", l.ID, err)
	}
	l.FoodName = name.String
	l.Quantity = quantity.Int64
	l.ExpiryDate = expiryDate
	l.ProviderID = providerID.Int64
	l.ProviderType = providerType.String
	l.Location = loc.String
	l.FoodType = food.String
	l.MealType = meal.String
	return l, nil
}
