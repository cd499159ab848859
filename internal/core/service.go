package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodwaste/pkg/domain"
)

// AllCities labels the browse option that removes the location filter. It is
// never compared against Location values.
const AllCities = "All"

// CityFilter narrows Browse to one Location value. The zero value lists every
// row.
type CityFilter struct {
	City    string
	Applied bool
}

// InCity filters on an exact Location value, the empty string included.
func InCity(city string) CityFilter { return CityFilter{City: city, Applied: true} }

var (
	// ErrUnavailable reports that an update or delete cannot be attempted
	// because no listing with the requested Food_ID exists.
	ErrUnavailable = errors.New("listing unavailable")
	// ErrInvalidListing reports form input outside the accepted ranges or option sets.
	ErrInvalidListing = errors.New("invalid listing")
)

// Service exposes the listing browser and the listing mutations.
type Service struct {
	store   domain.ListingStore
	logger  Logger
	metrics MetricsRecorder
	audit   AuditRecorder
	now     func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.ListingStore, opts ...ServiceOption) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		audit:   noopAuditRecorder{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Browse is the listing view: the distinct Location values, the applied
// filter and the matching rows.
type Browse struct {
	Cities   []string
	Filter   CityFilter
	Listings []domain.FoodListing
}

// ListingInput carries the fields of the create form.
type ListingInput struct {
	FoodName     string
	Quantity     int64
	ExpiryDate   *time.Time
	ProviderID   int64
	ProviderType string
	Location     string
	FoodType     string
	MealType     string
}

// Validate checks the numeric minimums and the closed option sets.
func (in ListingInput) Validate() error {
	switch {
	case in.Quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidListing)
	case in.ProviderID < 1:
		return fmt.Errorf("%w: provider id must be at least 1", ErrInvalidListing)
	case !domain.Contains(domain.ProviderTypes, in.ProviderType):
		return fmt.Errorf("%w: unknown provider type %q", ErrInvalidListing, in.ProviderType)
	case !domain.Contains(domain.FoodTypes, in.FoodType):
		return fmt.Errorf("%w: unknown food type %q", ErrInvalidListing, in.FoodType)
	case !domain.Contains(domain.MealTypes, in.MealType):
		return fmt.Errorf("%w: unknown meal type %q", ErrInvalidListing, in.MealType)
	}
	return nil
}

// Browse recomputes the distinct city list and the listing table from the
// store.
func (s *Service) Browse(ctx context.Context, filter CityFilter) (Browse, error) {
	out := Browse{Filter: filter}
	err := s.observe(ctx, "browse", func() error {
		var err error
		out.Cities, err = s.store.DistinctLocations(ctx)
		if err != nil {
			return fmt.Errorf("browse cities: %w", err)
		}
		var location *string
		if filter.Applied {
			location = &filter.City
		}
		out.Listings, err = s.store.ListListings(ctx, location)
		if err != nil {
			return fmt.Errorf("browse listings: %w", err)
		}
		return nil
	})
	return out, err
}

// ListingIDs returns the Food_ID values offered by the update and delete forms.
func (s *Service) ListingIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.observe(ctx, "listing_ids", func() error {
		var err error
		ids, err = s.store.ListingIDs(ctx)
		return err
	})
	return ids, err
}

// CreateListing validates and inserts a new listing, returning the stored row.
func (s *Service) CreateListing(ctx context.Context, input ListingInput) (domain.FoodListing, error) {
	var created domain.FoodListing
	err := s.mutate(ctx, "create_listing", func() (int64, error) {
		if err := input.Validate(); err != nil {
			return 0, err
		}
		var err error
		created, err = s.store.InsertListing(ctx, domain.FoodListing{
			FoodName:     input.FoodName,
			Quantity:     input.Quantity,
			ExpiryDate:   input.ExpiryDate,
			ProviderID:   input.ProviderID,
			ProviderType: input.ProviderType,
			Location:     input.Location,
			FoodType:     input.FoodType,
			MealType:     input.MealType,
		})
		if err != nil {
			return 0, fmt.Errorf("create listing: %w", err)
		}
		return created.ID, nil
	})
	return created, err
}

// UpdateListingQuantity overwrites the quantity of one listing. It returns
// ErrUnavailable when the id is not among the current listings.
func (s *Service) UpdateListingQuantity(ctx context.Context, id, quantity int64) error {
	return s.mutate(ctx, "update_listing_quantity", func() (int64, error) {
		if quantity < 1 {
			return id, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidListing)
		}
		if err := s.requireListing(ctx, id, "update"); err != nil {
			return id, err
		}
		ok, err := s.store.UpdateListingQuantity(ctx, id, quantity)
		if err != nil {
			return id, fmt.Errorf("update listing: %w", err)
		}
		if !ok {
			return id, fmt.Errorf("%w: listing %d no longer exists", ErrUnavailable, id)
		}
		return id, nil
	})
}

// DeleteListing removes one listing. It returns ErrUnavailable when the id is
// not among the current listings.
func (s *Service) DeleteListing(ctx context.Context, id int64) error {
	return s.mutate(ctx, "delete_listing", func() (int64, error) {
		if err := s.requireListing(ctx, id, "delete"); err != nil {
			return id, err
		}
		ok, err := s.store.DeleteListing(ctx, id)
		if err != nil {
			return id, fmt.Errorf("delete listing: %w", err)
		}
		if !ok {
			return id, fmt.Errorf("%w: listing %d no longer exists", ErrUnavailable, id)
		}
		return id, nil
	})
}

func (s *Service) requireListing(ctx context.Context, id int64, verb string) error {
	ids, err := s.store.ListingIDs(ctx)
	if err != nil {
		return fmt.Errorf("%s listing: %w", verb, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no listings available to %s", ErrUnavailable, verb)
	}
	for _, candidate := range ids {
		if candidate == id {
			return nil
		}
	}
	return fmt.Errorf("%w: listing %d not found", ErrUnavailable, id)
}

func (s *Service) observe(ctx context.Context, op string, fn func() error) error {
	start := s.now()
	err := fn()
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	if err != nil {
		s.logger.Error("listing operation failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) mutate(ctx context.Context, op string, fn func() (int64, error)) error {
	start := s.now()
	id, err := fn()
	duration := s.now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	entry := AuditEntry{
		Operation:  op,
		Status:     AuditStatusSuccess,
		EntityID:   id,
		Duration:   duration,
		OccurredAt: start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		if errors.Is(err, ErrInvalidListing) || errors.Is(err, ErrUnavailable) {
			s.logger.Warn("listing mutation rejected", "operation", op, "food_id", id, "error", err)
		} else {
			s.logger.Error("listing mutation failed", "operation", op, "food_id", id, "error", err)
		}
	} else {
		s.logger.Info("listing mutation applied", "operation", op, "food_id", id)
	}
	s.audit.Record(ctx, entry)
	return err
}
