package logging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"foodwaste/internal/core"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"loud":    zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewBuildsLoggerForBothEnvironments(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := New("foodwaste-test", env, "warn")
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) || !logger.Core().Enabled(zapcore.WarnLevel) {
			t.Fatalf("%s: level not applied", env)
		}
		_ = logger.Sync()
	}
}

func TestCoreLoggerWritesStructuredFields(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	var logger core.Logger = NewCoreLogger(zap.New(obs))
	logger.Debug("d", "op", "browse")
	logger.Info("i", "food_id", int64(7))
	logger.Warn("w")
	logger.Error("e", "error", "boom")
	if logs.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", logs.Len())
	}
	if got := logs.All()[1].ContextMap()["food_id"]; got != int64(7) {
		t.Fatalf("expected food_id field, got %#v", got)
	}
	NewCoreLogger(nil).Info("dropped")
}

func TestAuditRecorder(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	rec := NewAuditRecorder(zap.New(obs))
	at := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	rec.Record(context.Background(), core.AuditEntry{Operation: "delete_listing", Status: core.AuditStatusSuccess, EntityID: 4, OccurredAt: at})
	rec.Record(context.Background(), core.AuditEntry{Operation: "create_listing", Status: core.AuditStatusError, Error: "invalid", OccurredAt: at})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(entries))
	}
	if entries[0].LoggerName != "audit" || entries[0].ContextMap()["food_id"] != int64(4) {
		t.Fatalf("unexpected success entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "invalid" {
		t.Fatalf("unexpected error entry %+v", entries[1])
	}
	if _, ok := entries[1].ContextMap()["food_id"]; ok {
		t.Fatalf("zero entity id should be omitted")
	}
}

func TestMiddlewareLogsRequests(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestID, Middleware(zap.New(obs)))
	e.GET("/ok", func(c echo.Context) error {
		if FromContext(c, nil) == nil {
			t.Fatalf("expected request logger")
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/fail", func(echo.Context) error { return errors.New("store down") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	e.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("request id not echoed")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["request_id"] != "req-1" || first["status"] != int64(200) || first["path"] != "/ok" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	second := entries[1]
	if second.Level != zapcore.ErrorLevel || second.ContextMap()["status"] != int64(500) {
		t.Fatalf("unexpected second entry %+v", second.ContextMap())
	}
}

func TestFromContextFallback(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	fallback := zap.NewExample()
	if FromContext(c, fallback) != fallback {
		t.Fatalf("expected fallback logger")
	}
	if FromContext(c, nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
