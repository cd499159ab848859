package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"foodwaste/pkg/domain"
)

// Required header columns per table. Matching is exact and case-sensitive;
// unknown columns are ignored and order is free.
var (
	providerColumns = []string{"Provider_ID", "Name", "Type", "Address", "City", "Contact"}
	receiverColumns = []string{"Receiver_ID", "Name", "Type", "City", "Contact"}
	listingColumns  = []string{"Food_ID", "Food_Name", "Quantity", "Expiry_Date", "Provider_ID", "Provider_Type", "Location", "Food_Type", "Meal_Type"}
	claimColumns    = []string{"Claim_ID", "Food_ID", "Receiver_ID", "Status", "Timestamp"}
)

// timestampLayouts are tried in order. The slash forms match spreadsheet exports.
var timestampLayouts = []string{
	domain.TimestampLayout,
	time.RFC3339,
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
}

// table reads one CSV source row by row with header-based column lookup.
type table struct {
	source string
	reader *csv.Reader
	index  map[string]int
	fields []string
	line   int
}

func openTable(r io.Reader, source string, required []string) (*table, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: empty input, want %s", ErrMissingColumn, source, strings.Join(required, ","))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", source, ErrMalformedValue, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s: %q", ErrMissingColumn, source, col)
		}
	}
	return &table{source: source, reader: reader, index: index}, nil
}

// next advances to the following record. It returns false at end of input.
func (t *table) next() (bool, error) {
	fields, err := t.reader.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", t.source, ErrMalformedValue, err)
	}
	t.fields = fields
	t.line, _ = t.reader.FieldPos(0)
	return true, nil
}

func (t *table) str(col string) string {
	return t.fields[t.index[col]]
}

func (t *table) integer(col string) (int64, error) {
	raw := strings.TrimSpace(t.str(col))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, t.malformed(col, raw, errors.New("want integer"))
	}
	return n, nil
}

func (t *table) timestamp(col string) (*time.Time, error) {
	raw := strings.TrimSpace(t.str(col))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, t.malformed(col, raw, errors.New("want timestamp"))
}

func (t *table) malformed(col, value string, err error) error {
	return &ValueError{Source: t.source, Line: t.line, Column: col, Value: value, Err: err}
}

// parseProviders reads the providers source.
func parseProviders(r io.Reader, source string) ([]domain.Provider, error) {
	t, err := openTable(r, source, providerColumns)
	if err != nil {
		return nil, err
	}
	var out []domain.Provider
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		id, err := t.integer("Provider_ID")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Provider{
			ID:      id,
			Name:    t.str("Name"),
			Type:    t.str("Type"),
			Address: t.str("Address"),
			City:    t.str("City"),
			Contact: t.str("Contact"),
		})
	}
}

func parseReceivers(r io.Reader, source string) ([]domain.Receiver, error) {
	t, err := openTable(r, source, receiverColumns)
	if err != nil {
		return nil, err
	}
	var out []domain.Receiver
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		id, err := t.integer("Receiver_ID")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Receiver{
			ID:      id,
			Name:    t.str("Name"),
			Type:    t.str("Type"),
			City:    t.str("City"),
			Contact: t.str("Contact"),
		})
	}
}

func parseListings(r io.Reader, source string) ([]domain.FoodListing, error) {
	t, err := openTable(r, source, listingColumns)
	if err != nil {
		return nil, err
	}
	var out []domain.FoodListing
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		l := domain.FoodListing{
			FoodName:     t.str("Food_Name"),
			ProviderType: t.str("Provider_Type"),
			Location:     t.str("Location"),
			FoodType:     t.str("Food_Type"),
			MealType:     t.str("Meal_Type"),
		}
		if l.ID, err = t.integer("Food_ID"); err != nil {
			return nil, err
		}
		if l.Quantity, err = t.integer("Quantity"); err != nil {
			return nil, err
		}
		if l.ExpiryDate, err = t.timestamp("Expiry_Date"); err != nil {
			return nil, err
		}
		if l.ProviderID, err = t.integer("Provider_ID"); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
}

func parseClaims(r io.Reader, source string) ([]domain.Claim, error) {
	t, err := openTable(r, source, claimColumns)
	if err != nil {
		return nil, err
	}
	var out []domain.Claim
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		c := domain.Claim{Status: t.str("Status")}
		if c.ID, err = t.integer("Claim_ID"); err != nil {
			return nil, err
		}
		if c.FoodID, err = t.integer("Food_ID"); err != nil {
			return nil, err
		}
		if c.ReceiverID, err = t.integer("Receiver_ID"); err != nil {
			return nil, err
		}
		if c.Timestamp, err = t.timestamp("Timestamp"); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}
