// Package domain defines the persistent records shared by the loader, the
// listing service, and the report engine.
package domain

import "time"

// EntityType identifies one of the four persisted tables.
type EntityType string

// Supported entity types. The values double as table names.
const (
	// EntityProvider identifies a donor organisation record.
	EntityProvider EntityType = "providers"
	// EntityReceiver identifies a recipient organisation record.
	EntityReceiver EntityType = "receivers"
	// EntityFoodListing identifies a donor-posted food item.
	EntityFoodListing EntityType = "food_listings"
	// EntityClaim identifies a receiver's claim against a listing.
	EntityClaim EntityType = "claims"
)

// TimestampLayout is the text form used for every persisted timestamp. It
// sorts lexicographically in chronological order, which the expiry reports
// rely on.
const TimestampLayout = "2006-01-02 15:04:05"

// Provider is a donor organisation. Load-only.
type Provider struct {
	ID      int64  `json:"provider_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	City    string `json:"city"`
	Contact string `json:"contact"`
}

// Receiver is a recipient organisation. Load-only.
type Receiver struct {
	ID      int64  `json:"receiver_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	City    string `json:"city"`
	Contact string `json:"contact"`
}

// FoodListing is the only record with a live create/update/delete surface.
// ProviderID is a soft reference and may point at a provider that does not exist.
type FoodListing struct {
	ID           int64      `json:"food_id"`
	FoodName     string     `json:"food_name"`
	Quantity     int64      `json:"quantity"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	ProviderID   int64      `json:"provider_id"`
	ProviderType string     `json:"provider_type"`
	Location     string     `json:"location"`
	FoodType     string     `json:"food_type"`
	MealType     string     `json:"meal_type"`
}

// Claim links a receiver to a listing. Status is an open string; the values
// below are the ones observed in source data, not an enforced set.
type Claim struct {
	ID         int64      `json:"claim_id"`
	FoodID     int64      `json:"food_id"`
	ReceiverID int64      `json:"receiver_id"`
	Status     string     `json:"status"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Observed claim statuses.
const (
	ClaimPending   = "Pending"
	ClaimCompleted = "Completed"
	ClaimCanceled  = "Canceled"
)

// ProviderTypes lists the provider categories offered when creating a listing.
var ProviderTypes = []string{"Restaurant", "Grocery Store", "Supermarket", "Catering Service"}

// FoodTypes lists the dietary categories offered when creating a listing.
var FoodTypes = []string{"Vegetarian", "Non-Vegetarian", "Vegan"}

// MealTypes lists the meal categories offered when creating a listing.
var MealTypes = []string{"Breakfast", "Lunch", "Dinner", "Snacks"}

// Contains reports whether value is one of options (exact, case-sensitive match).
func Contains(options []string, value string) bool {
	for _, candidate := range options {
		if candidate == value {
			return true
		}
	}
	return false
}

// Dataset is the full content of the four tables, replaced as one unit by the loader.
type Dataset struct {
	Providers []Provider
	Receivers []Receiver
	Listings  []FoodListing
	Claims    []Claim
}

// FormatTimestamp renders t in TimestampLayout (UTC). Nil yields nil so the
// column is stored as NULL.
func FormatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp. Empty input yields nil.
func ParseTimestamp(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05Z07:00", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, &time.ParseError{Layout: TimestampLayout, Value: raw, Message: ": unrecognised timestamp"}
}
