// Package web serves the single-page dashboard: listing browser, the three
// listing forms and the 25 report panels.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"foodwaste/internal/core"
	"foodwaste/internal/logging"
	"foodwaste/internal/reports"
	"foodwaste/pkg/domain"
	"foodwaste/pkg/reportapi"
)

//go:embed templates/*.html
var templateFS embed.FS

var listingColumns = []string{
	"Food_ID", "Food_Name", "Quantity", "Expiry_Date", "Provider_ID",
	"Provider_Type", "Location", "Food_Type", "Meal_Type",
}

// expiryLayouts accepts the date input's value plus a datetime-local value.
var expiryLayouts = []string{"2006-01-02", "2006-01-02T15:04", domain.TimestampLayout}

// Panels runs every report for the page.
type Panels interface {
	RunAll(ctx context.Context) []reports.Panel
}

// MessageKind selects the styling of the page banner.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageInfo    MessageKind = "info"
	MessageError   MessageKind = "error"
)

// Message is the banner shown after a form submission.
type Message struct {
	Kind MessageKind
	Text string
}

type page struct {
	AllCities      string
	Cities         []string
	Filter         core.CityFilter
	Listings       []domain.FoodListing
	ListingColumns []string
	ListingIDs     []int64
	Panels         []reports.Panel
	ProviderTypes  []string
	FoodTypes      []string
	MealTypes      []string
	Message        *Message
}

// Dashboard renders the page against the listing service and report catalog.
type Dashboard struct {
	service *core.Service
	panels  Panels
	logger  *zap.Logger
	tmpl    *template.Template
	metrics http.Handler
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(d *Dashboard) { d.metrics = h }
}

// New parses the embedded templates and returns a dashboard.
func New(service *core.Service, panels Panels, logger *zap.Logger, opts ...Option) (*Dashboard, error) {
	if service == nil || panels == nil {
		return nil, errors.New("web: service and panels required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"cell":      reportapi.FormatValue,
		"timestamp": formatExpiry,
		"cityValue": encodeCityFilter,
		"inCity":    core.InCity,
		"selected":  citySelected,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	d := &Dashboard{service: service, panels: panels, logger: logger, tmpl: tmpl}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Register mounts the dashboard routes on e.
func (d *Dashboard) Register(e *echo.Echo) {
	e.GET("/", d.handleIndex)
	e.POST("/listings", d.handleCreate)
	e.POST("/listings/update", d.handleUpdate)
	e.POST("/listings/delete", d.handleDelete)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.metrics))
	}
}

// cityParam carries the listing filter in the query string and in the hidden
// field of every form. Empty lists every row. "=" followed by a Location
// selects exactly that value, the empty one included; the page always emits
// this form. Any other value is taken as a Location verbatim.
const cityParam = "city"

func parseCityFilter(raw string) core.CityFilter {
	switch {
	case raw == "":
		return core.CityFilter{}
	case strings.HasPrefix(raw, "="):
		return core.InCity(raw[1:])
	default:
		return core.InCity(raw)
	}
}

func encodeCityFilter(f core.CityFilter) string {
	if !f.Applied {
		return ""
	}
	return "=" + f.City
}

func citySelected(f core.CityFilter, city string) bool {
	return f.Applied && f.City == city
}

func (d *Dashboard) handleIndex(c echo.Context) error {
	return d.render(c, parseCityFilter(c.QueryParam(cityParam)), http.StatusOK, nil)
}

func (d *Dashboard) handleCreate(c echo.Context) error {
	city := parseCityFilter(c.FormValue(cityParam))
	input, err := parseListingForm(c)
	if err != nil {
		return d.render(c, city, http.StatusBadRequest, &Message{Kind: MessageError, Text: err.Error()})
	}
	created, err := d.service.CreateListing(c.Request().Context(), input)
	if err != nil {
		return d.mutationFailed(c, city, err)
	}
	return d.render(c, city, http.StatusOK, &Message{Kind: MessageSuccess, Text: fmt.Sprintf("Added %s successfully!", created.FoodName)})
}

func (d *Dashboard) handleUpdate(c echo.Context) error {
	city := parseCityFilter(c.FormValue(cityParam))
	if msg, unavailable, err := d.unavailable(c, "update"); err != nil || unavailable {
		if err != nil {
			return d.storeFault(c, err)
		}
		return d.render(c, city, http.StatusOK, msg)
	}
	id, err := positiveInt(c.FormValue("food_id"), "Food ID")
	if err != nil {
		return d.render(c, city, http.StatusBadRequest, &Message{Kind: MessageError, Text: err.Error()})
	}
	quantity, err := positiveInt(c.FormValue("quantity"), "Quantity")
	if err != nil {
		return d.render(c, city, http.StatusBadRequest, &Message{Kind: MessageError, Text: err.Error()})
	}
	if err := d.service.UpdateListingQuantity(c.Request().Context(), id, quantity); err != nil {
		return d.mutationFailed(c, city, err)
	}
	return d.render(c, city, http.StatusOK, &Message{Kind: MessageSuccess, Text: fmt.Sprintf("Listing with Food ID %d updated successfully!", id)})
}

func (d *Dashboard) handleDelete(c echo.Context) error {
	city := parseCityFilter(c.FormValue(cityParam))
	if msg, unavailable, err := d.unavailable(c, "delete"); err != nil || unavailable {
		if err != nil {
			return d.storeFault(c, err)
		}
		return d.render(c, city, http.StatusOK, msg)
	}
	id, err := positiveInt(c.FormValue("food_id"), "Food ID")
	if err != nil {
		return d.render(c, city, http.StatusBadRequest, &Message{Kind: MessageError, Text: err.Error()})
	}
	if err := d.service.DeleteListing(c.Request().Context(), id); err != nil {
		return d.mutationFailed(c, city, err)
	}
	return d.render(c, city, http.StatusOK, &Message{Kind: MessageSuccess, Text: fmt.Sprintf("Listing with Food ID %d deleted successfully!", id)})
}

// unavailable reports the info banner when there is no listing to act on, in
// which case the mutation is not attempted.
func (d *Dashboard) unavailable(c echo.Context, verb string) (*Message, bool, error) {
	ids, err := d.service.ListingIDs(c.Request().Context())
	if err != nil {
		return nil, false, err
	}
	if len(ids) > 0 {
		return nil, false, nil
	}
	return &Message{Kind: MessageInfo, Text: fmt.Sprintf("No listings available to %s.", verb)}, true, nil
}

func (d *Dashboard) mutationFailed(c echo.Context, city core.CityFilter, err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidListing):
		return d.render(c, city, http.StatusBadRequest, &Message{Kind: MessageError, Text: err.Error()})
	case errors.Is(err, core.ErrUnavailable):
		return d.render(c, city, http.StatusNotFound, &Message{Kind: MessageError, Text: err.Error()})
	default:
		return d.storeFault(c, err)
	}
}

func (d *Dashboard) storeFault(c echo.Context, err error) error {
	logging.FromContext(c, d.logger).Error("dashboard store fault", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "storage error").SetInternal(err)
}

// render rebuilds the page from current store state. Listing or report
// failures turn the response into a 500.
func (d *Dashboard) render(c echo.Context, city core.CityFilter, status int, msg *Message) error {
	ctx := c.Request().Context()
	browse, err := d.service.Browse(ctx, city)
	if err != nil {
		return d.storeFault(c, err)
	}
	ids, err := d.service.ListingIDs(ctx)
	if err != nil {
		return d.storeFault(c, err)
	}
	data := page{
		AllCities:      core.AllCities,
		Cities:         browse.Cities,
		Filter:         browse.Filter,
		Listings:       browse.Listings,
		ListingColumns: listingColumns,
		ListingIDs:     ids,
		Panels:         d.panels.RunAll(ctx),
		ProviderTypes:  domain.ProviderTypes,
		FoodTypes:      domain.FoodTypes,
		MealTypes:      domain.MealTypes,
		Message:        msg,
	}
	for _, panel := range data.Panels {
		if panel.Err != nil {
			logging.FromContext(c, d.logger).Error("report panel failed", zap.String("report", panel.Descriptor.Key), zap.Error(panel.Err))
			status = http.StatusInternalServerError
		}
	}
	buf := &bytes.Buffer{}
	if err := d.tmpl.ExecuteTemplate(buf, "dashboard.html", data); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func parseListingForm(c echo.Context) (core.ListingInput, error) {
	quantity, err := positiveInt(c.FormValue("quantity"), "Quantity")
	if err != nil {
		return core.ListingInput{}, err
	}
	providerID, err := positiveInt(c.FormValue("provider_id"), "Provider ID")
	if err != nil {
		return core.ListingInput{}, err
	}
	input := core.ListingInput{
		FoodName:     strings.TrimSpace(c.FormValue("food_name")),
		Quantity:     quantity,
		ProviderID:   providerID,
		ProviderType: c.FormValue("provider_type"),
		Location:     strings.TrimSpace(c.FormValue("location")),
		FoodType:     c.FormValue("food_type"),
		MealType:     c.FormValue("meal_type"),
	}
	if raw := strings.TrimSpace(c.FormValue("expiry_date")); raw != "" {
		expiry, err := parseExpiry(raw)
		if err != nil {
			return core.ListingInput{}, err
		}
		input.ExpiryDate = &expiry
	}
	return input, input.Validate()
}

func positiveInt(raw, field string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", core.ErrInvalidListing, field)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %s must be at least 1", core.ErrInvalidListing, field)
	}
	return n, nil
}

func parseExpiry(raw string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: expiry date %q is not a date", core.ErrInvalidListing, raw)
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(domain.TimestampLayout)
}
