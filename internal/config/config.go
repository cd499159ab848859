// Package config loads process configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"foodwaste/internal/blob"
	"foodwaste/internal/core"
	"foodwaste/internal/reports"
)

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig
	Storage core.StorageConfig
	Blob    blob.Config
	Loader  LoaderConfig
	Reports reports.Settings
	Exports ExportConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// LoaderConfig locates the CSV inputs inside the blob store.
type LoaderConfig struct {
	InputPrefix string
}

// ExportConfig sizes the background export worker.
type ExportConfig struct {
	QueueSize int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	defaults := reports.DefaultSettings()
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("FOODWASTE_HTTP_ADDR", ":8080"),
			Env:             getEnv("APP_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("FOODWASTE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(strings.ToLower(getEnv("FOODWASTE_STORAGE_DRIVER", string(core.StorageSQLite)))),
			SQLitePath:  getEnv("FOODWASTE_SQLITE_PATH", "food_wastage.db"),
			PostgresDSN: getEnv("FOODWASTE_POSTGRES_DSN", ""),
		},
		Blob: blob.Config{
			Driver: blob.Driver(strings.ToLower(getEnv("FOODWASTE_BLOB_DRIVER", string(blob.DriverFilesystem)))),
			FSRoot: getEnv("FOODWASTE_BLOB_FS_ROOT", "data"),
			S3: blob.S3Config{
				Bucket:          getEnv("FOODWASTE_BLOB_S3_BUCKET", ""),
				Region:          getEnv("FOODWASTE_BLOB_S3_REGION", "us-east-1"),
				Endpoint:        getEnv("FOODWASTE_BLOB_S3_ENDPOINT", ""),
				PathStyle:       getEnvAsBool("FOODWASTE_BLOB_S3_PATH_STYLE", false),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				SessionToken:    getEnv("AWS_SESSION_TOKEN", ""),
			},
		},
		Loader: LoaderConfig{
			InputPrefix: getEnv("FOODWASTE_INPUT_PREFIX", ""),
		},
		Reports: reports.Settings{
			ContactCity:     getEnv("FOODWASTE_REPORT_CONTACT_CITY", defaults.ContactCity),
			ClaimedFoodType: getEnv("FOODWASTE_REPORT_CLAIMED_FOOD_TYPE", defaults.ClaimedFoodType),
		},
		Exports: ExportConfig{
			QueueSize: getEnvAsInt("FOODWASTE_EXPORT_QUEUE", 32),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects driver names and settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case core.StorageSQLite, core.StoragePostgres, core.StorageMemory:
	default:
		return fmt.Errorf("config: FOODWASTE_STORAGE_DRIVER %q not one of sqlite|postgres|memory", c.Storage.Driver)
	}
	if c.Storage.Driver == core.StoragePostgres && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: FOODWASTE_POSTGRES_DSN required for postgres driver")
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("config: FOODWASTE_BLOB_S3_BUCKET required for s3 driver")
		}
	default:
		return fmt.Errorf("config: FOODWASTE_BLOB_DRIVER %q not one of fs|s3|memory", c.Blob.Driver)
	}
	if c.Exports.QueueSize < 1 {
		return fmt.Errorf("config: FOODWASTE_EXPORT_QUEUE must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c *Config) IsProduction() bool { return strings.EqualFold(c.Server.Env, "production") }

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
