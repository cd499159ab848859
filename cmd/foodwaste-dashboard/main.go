// Command foodwaste-dashboard serves the listing dashboard, the report API and
// the Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	reportshttp "foodwaste/internal/adapters/reports"
	"foodwaste/internal/blob"
	"foodwaste/internal/config"
	"foodwaste/internal/core"
	"foodwaste/internal/logging"
	"foodwaste/internal/observability"
	"foodwaste/internal/reports"
	"foodwaste/internal/web"
	"foodwaste/pkg/domain"
	"foodwaste/pkg/reportapi"
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
	logger, err := logging.New("foodwaste-dashboard", cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr), zap.String("environment", cfg.Server.Env))
		errCh <- srv.echo.Start(cfg.Server.Addr)
	}()

	code := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
		code = 1
	}
	return code
}

// server bundles the HTTP router with the resources it must release.
type server struct {
	echo   *echo.Echo
	store  domain.PersistentStore
	worker *reportshttp.Worker
}

// newServer opens the stores, binds the report catalog and mounts every route.
// The export worker is started before it returns.
func newServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*server, error) {
	metrics := observability.NewMetrics(observability.DefaultPrefix)

	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	coreLogger := logging.NewCoreLogger(logger)
	catalog, err := reports.NewCatalog(reportapi.Environment{Store: store}, cfg.Reports,
		reports.WithLogger(coreLogger),
		reports.WithMetricsRecorder(metrics),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build report catalog: %w", err)
	}
	svc := core.NewService(store,
		core.WithLogger(coreLogger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(logging.NewAuditRecorder(logger)),
	)

	dashboard, err := web.New(svc, catalog, logger, web.WithMetricsHandler(metrics.Handler()))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	worker := reportshttp.NewWorker(catalog, blobs,
		reportshttp.WithQueueSize(cfg.Exports.QueueSize),
		reportshttp.WithLogger(logger),
		reportshttp.WithQueueDepth(metrics.ExportQueueDepth),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(logging.RequestID)
	e.Use(logging.Middleware(logger))
	e.Use(metrics.Middleware)

	dashboard.Register(e)
	reportshttp.NewHandler(catalog, worker, logger).Register(e)

	worker.Start()
	return &server{echo: e, store: store, worker: worker}, nil
}

// Shutdown drains HTTP traffic, stops the export worker and closes the store.
func (s *server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.echo.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if err := s.worker.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("export worker: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
