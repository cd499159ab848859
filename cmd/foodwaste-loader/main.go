// Command foodwaste-loader replaces the providers, receivers, food_listings
// and claims tables with the CSV objects found in the configured blob store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"foodwaste/internal/blob"
	"foodwaste/internal/config"
	"foodwaste/internal/core"
	"foodwaste/internal/loader"
	"foodwaste/internal/logging"
)

var exitFunc = os.Exit

func main() {
	exitFunc(realMain())
}

func realMain() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger, err := logging.New("foodwaste-loader", cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Error("load aborted", zap.Error(err))
		return 1
	}
	logger.Info("load complete",
		zap.Int("providers", summary.Providers),
		zap.Int("receivers", summary.Receivers),
		zap.Int("food_listings", summary.Listings),
		zap.Int("claims", summary.Claims))
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (loader.Summary, error) {
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return loader.Summary{}, fmt.Errorf("open blob store: %w", err)
	}
	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return loader.Summary{}, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	l := loader.New(blobs, store,
		loader.WithSources(loader.DefaultSources(cfg.Loader.InputPrefix)),
		loader.WithLogger(logger),
	)
	return l.Load(ctx)
}
