package core

import (
	"context"
	"testing"
	"time"

	"foodwaste/internal/infra/persistence/sqlite"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureLogger struct {
	noopLogger
	warnings []string
	infos    []string
}

func (c *captureLogger) Info(msg string, _ ...any) { c.infos = append(c.infos, msg) }
func (c *captureLogger) Warn(msg string, _ ...any) { c.warnings = append(c.warnings, msg) }

func TestServiceObservabilityListingMutations(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewMemoryStore()
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	logger := &captureLogger{}
	tick := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	svc := NewService(store,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithLogger(logger),
		WithClock(clock),
	)

	created, err := svc.CreateListing(ctx, ListingInput{
		FoodName: "Bread", Quantity: 3, ProviderID: 1,
		ProviderType: "Supermarket", Location: "Springfield", FoodType: "Vegan", MealType: "Snacks",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !audit.has("create_listing", AuditStatusSuccess, func(e AuditEntry) bool { return e.EntityID == created.ID }) {
		t.Fatalf("expected audit entry for create_listing success")
	}
	if err := svc.DeleteListing(ctx, created.ID+100); err == nil {
		t.Fatalf("expected delete of missing id to fail")
	}
	if !audit.has("delete_listing", AuditStatusError, func(e AuditEntry) bool { return e.Error != "" }) {
		t.Fatalf("expected audit error entry for delete_listing")
	}
	if !metrics.has("delete_listing", false) {
		t.Fatalf("expected failed delete_listing metric")
	}
	if _, err := svc.Browse(ctx, CityFilter{}); err != nil {
		t.Fatalf("browse: %v", err)
	}
	if !metrics.has("browse", true) {
		t.Fatalf("expected browse metric")
	}
	for _, call := range metrics.calls {
		if call.duration != time.Millisecond {
			t.Fatalf("expected clock-derived duration, got %v for %s", call.duration, call.op)
		}
	}
	if len(logger.infos) != 1 || len(logger.warnings) != 1 {
		t.Fatalf("expected one info and one warning, got %v / %v", logger.infos, logger.warnings)
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewService(nil, WithLogger(nil), WithMetricsRecorder(nil), WithAuditRecorder(nil), WithClock(nil))
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("expected noop logger, got %T", svc.logger)
	}
	if _, ok := svc.metrics.(noopMetricsRecorder); !ok {
		t.Fatalf("expected noop metrics, got %T", svc.metrics)
	}
	if _, ok := svc.audit.(noopAuditRecorder); !ok {
		t.Fatalf("expected noop audit, got %T", svc.audit)
	}
	if svc.now == nil {
		t.Fatalf("expected default clock")
	}
}
