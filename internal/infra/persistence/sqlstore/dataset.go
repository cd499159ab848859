package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"foodwaste/pkg/domain"
)

// replaceOrder fixes the delete/insert order so repeated loads issue the same statements.
var replaceOrder = []domain.EntityType{
	domain.EntityProvider,
	domain.EntityReceiver,
	domain.EntityFoodListing,
	domain.EntityClaim,
}

var identityColumns = map[domain.EntityType]string{
	domain.EntityProvider:    "provider_id",
	domain.EntityReceiver:    "receiver_id",
	domain.EntityFoodListing: "food_id",
	domain.EntityClaim:       "claim_id",
}

// ReplaceAll swaps the contents of all four tables for data inside one
// transaction. Any failure rolls back the whole load.
func (s *Store) ReplaceAll(ctx context.Context, data domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, table := range replaceOrder {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertEach(ctx, tx, s.rebind(`INSERT INTO providers (Provider_ID, Name, Type, Address, City, Contact) VALUES (?, ?, ?, ?, ?, ?)`),
		len(data.Providers), func(i int) []any {
			p := data.Providers[i]
			return []any{p.ID, p.Name, p.Type, p.Address, p.City, p.Contact}
		}); err != nil {
		return fmt.Errorf("insert providers: %w", err)
	}
	if err := insertEach(ctx, tx, s.rebind(`INSERT INTO receivers (Receiver_ID, Name, Type, City, Contact) VALUES (?, ?, ?, ?, ?)`),
		len(data.Receivers), func(i int) []any {
			r := data.Receivers[i]
			return []any{r.ID, r.Name, r.Type, r.City, r.Contact}
		}); err != nil {
		return fmt.Errorf("insert receivers: %w", err)
	}
	if err := insertEach(ctx, tx, s.rebind(`INSERT INTO food_listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		len(data.Listings), func(i int) []any {
			l := data.Listings[i]
			return []any{l.ID, l.FoodName, l.Quantity, domain.FormatTimestamp(l.ExpiryDate), l.ProviderID, l.ProviderType, l.Location, l.FoodType, l.MealType}
		}); err != nil {
		return fmt.Errorf("insert food_listings: %w", err)
	}
	if err := insertEach(ctx, tx, s.rebind(`INSERT INTO claims (Claim_ID, Food_ID, Receiver_ID, Status, Timestamp) VALUES (?, ?, ?, ?, ?)`),
		len(data.Claims), func(i int) []any {
			c := data.Claims[i]
			return []any{c.ID, c.FoodID, c.ReceiverID, c.Status, domain.FormatTimestamp(c.Timestamp)}
		}); err != nil {
		return fmt.Errorf("insert claims: %w", err)
	}

	if s.dialect == domain.DialectPostgres {
		for _, table := range replaceOrder {
			col := identityColumns[table]
			stmt := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE(MAX(%s), 0) + 1, false) FROM %s`, table, col, col, table)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("advance %s sequence: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func insertEach(ctx context.Context, tx *sql.Tx, query string, n int, row func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

// ExportAll reads every table back in primary-key order.
func (s *Store) ExportAll(ctx context.Context) (domain.Dataset, error) {
	var data domain.Dataset

	providers, err := s.db.QueryContext(ctx, `SELECT Provider_ID, Name, Type, Address, City, Contact FROM providers ORDER BY Provider_ID`)
	if err != nil {
		return data, fmt.Errorf("select providers: %w", err)
	}
	for providers.Next() {
		var p domain.Provider
		var name, typ, addr, city, contact sql.NullString
		if err := providers.Scan(&p.ID, &name, &typ, &addr, &city, &contact); err != nil {
			_ = providers.Close()
			return data, fmt.Errorf("scan provider: %w", err)
		}
		p.Name, p.Type, p.Address, p.City, p.Contact = name.String, typ.String, addr.String, city.String, contact.String
		data.Providers = append(data.Providers, p)
	}
	if err := closeRows(providers); err != nil {
		return data, err
	}

	receivers, err := s.db.QueryContext(ctx, `SELECT Receiver_ID, Name, Type, City, Contact FROM receivers ORDER BY Receiver_ID`)
	if err != nil {
		return data, fmt.Errorf("select receivers: %w", err)
	}
	for receivers.Next() {
		var r domain.Receiver
		var name, typ, city, contact sql.NullString
		if err := receivers.Scan(&r.ID, &name, &typ, &city, &contact); err != nil {
			_ = receivers.Close()
			return data, fmt.Errorf("scan receiver: %w", err)
		}
		r.Name, r.Type, r.City, r.Contact = name.String, typ.String, city.String, contact.String
		data.Receivers = append(data.Receivers, r)
	}
	if err := closeRows(receivers); err != nil {
		return data, err
	}

	data.Listings, err = s.ListListings(ctx, nil)
	if err != nil {
		return data, err
	}

	claims, err := s.db.QueryContext(ctx, `SELECT Claim_ID, Food_ID, Receiver_ID, Status, Timestamp FROM claims ORDER BY Claim_ID`)
	if err != nil {
		return data, fmt.Errorf("select claims: %w", err)
	}
	for claims.Next() {
		var c domain.Claim
		var foodID, receiverID sql.NullInt64
		var status, ts sql.NullString
		if err := claims.Scan(&c.ID, &foodID, &receiverID, &status, &ts); err != nil {
			_ = claims.Close()
			return data, fmt.Errorf("scan claim: %w", err)
		}
		c.FoodID, c.ReceiverID, c.Status = foodID.Int64, receiverID.Int64, status.String
		if c.Timestamp, err = domain.ParseTimestamp(ts.String); err != nil {
			_ = claims.Close()
			return data, fmt.Errorf("claim %d timestamp: %w", c.ID, err)
		}
		data.Claims = append(data.Claims, c)
	}
	if err := closeRows(claims); err != nil {
		return data, err
	}
	return data, nil
}

func closeRows(rows *sql.Rows) error {
	iterErr := rows.Err()
	closeErr := rows.Close()
	if iterErr != nil {
		return fmt.Errorf("iterate: %w", iterErr)
	}
	return closeErr
}
