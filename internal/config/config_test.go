package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foodwaste/internal/blob"
	"foodwaste/internal/core"
)

var managedKeys = []string{
	"FOODWASTE_HTTP_ADDR", "APP_ENV", "FOODWASTE_SHUTDOWN_TIMEOUT",
	"FOODWASTE_STORAGE_DRIVER", "FOODWASTE_SQLITE_PATH", "FOODWASTE_POSTGRES_DSN",
	"FOODWASTE_BLOB_DRIVER", "FOODWASTE_BLOB_FS_ROOT", "FOODWASTE_BLOB_S3_BUCKET",
	"FOODWASTE_BLOB_S3_REGION", "FOODWASTE_BLOB_S3_ENDPOINT", "FOODWASTE_BLOB_S3_PATH_STYLE",
	"FOODWASTE_INPUT_PREFIX", "FOODWASTE_REPORT_CONTACT_CITY", "FOODWASTE_REPORT_CLAIMED_FOOD_TYPE",
	"FOODWASTE_EXPORT_QUEUE", "LOG_LEVEL",
}

// clearEnv unsets every key the loader reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.Env != "development" || cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Storage.Driver != core.StorageSQLite || cfg.Storage.SQLitePath != "food_wastage.db" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverFilesystem || cfg.Blob.FSRoot != "data" {
		t.Fatalf("unexpected blob config %+v", cfg.Blob)
	}
	if cfg.Reports.ContactCity != "East Aaron" || cfg.Reports.ClaimedFoodType != "Non-Vegetarian" {
		t.Fatalf("unexpected report settings %+v", cfg.Reports)
	}
	if cfg.Exports.QueueSize != 32 || cfg.Log.Level != "info" || cfg.IsProduction() {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("FOODWASTE_STORAGE_DRIVER", "POSTGRES")
	t.Setenv("FOODWASTE_POSTGRES_DSN", "postgres://db/foodwaste")
	t.Setenv("FOODWASTE_BLOB_DRIVER", "s3")
	t.Setenv("FOODWASTE_BLOB_S3_BUCKET", "inputs")
	t.Setenv("FOODWASTE_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("FOODWASTE_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("FOODWASTE_EXPORT_QUEUE", "not-a-number")
	t.Setenv("FOODWASTE_REPORT_CONTACT_CITY", "New Jessica")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !cfg.IsProduction() || cfg.Storage.Driver != core.StoragePostgres || cfg.Storage.PostgresDSN != "postgres://db/foodwaste" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "inputs" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("unexpected blob config %+v", cfg.Blob)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second || cfg.Exports.QueueSize != 32 {
		t.Fatalf("unexpected parsed values %+v %+v", cfg.Server, cfg.Exports)
	}
	if cfg.Reports.ContactCity != "New Jessica" {
		t.Fatalf("unexpected contact city %s", cfg.Reports.ContactCity)
	}
}

func TestFromEnvRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":   {"FOODWASTE_STORAGE_DRIVER": "mysql"},
		"postgres sans dsn": {"FOODWASTE_STORAGE_DRIVER": "postgres"},
		"unknown blob":      {"FOODWASTE_BLOB_DRIVER": "gcs"},
		"s3 sans bucket":    {"FOODWASTE_BLOB_DRIVER": "s3"},
		"zero queue":        {"FOODWASTE_EXPORT_QUEUE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FOODWASTE_HTTP_ADDR=:9999\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	{ // t.Chdir equivalent (testing.T.Chdir needs Go 1.24)
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("expected .env value, got %s", cfg.Server.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("process env must win over .env, got %s", cfg.Log.Level)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "nope")
	t.Setenv("X_DUR", "1m")
	if getEnvAsBool("X_BOOL", true) != true {
		t.Fatalf("invalid bool should fall back to default")
	}
	if getEnvAsDuration("X_DUR", time.Second) != time.Minute {
		t.Fatalf("expected parsed duration")
	}
	if getEnv("X_UNSET_FOR_SURE", "d") != "d" {
		t.Fatalf("expected default")
	}
}
