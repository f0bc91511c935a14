package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexsync/dexsync/internal/api"
	"github.com/dexsync/dexsync/internal/bootstrap"
	"github.com/dexsync/dexsync/internal/config"
	"github.com/dexsync/dexsync/internal/observability"
	"github.com/dexsync/dexsync/internal/seed"
)

func main() {
	cfg, err := config.LoadFromEnv("dexsync-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, repo, err := bootstrap.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open species store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ingester, err := bootstrap.NewIngestService(cfg, repo, logger)
	if err != nil {
		logger.Error("failed to initialize ingest service", slog.Any("error", err))
		os.Exit(1)
	}
	refresher := bootstrap.NewRefreshService(cfg, repo, ingester, logger)
	exporter, err := bootstrap.NewExportService(context.Background(), cfg, repo, logger)
	if err != nil {
		logger.Error("failed to initialize export service", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrap.SyncOnStart(ctx, cfg, seed.ReadNames, ingester, logger)

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         repo.HealthCheck,
		DependencyTimeout: time.Second,
		Species:           repo,
		Ingester:          ingester,
		SeedNames: func() ([]string, error) {
			return seed.ReadNames(cfg.Sync.SeedCSVPath)
		},
		Refresher: refresher,
	}
	if exporter != nil {
		deps.Exporter = exporter
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	refreshDone := make(chan struct{})
	if cfg.Sync.DisableBackgroundRefresh {
		logger.Info("background refresh disabled by configuration")
		close(refreshDone)
	} else {
		go func() {
			defer close(refreshDone)
			logger.Info("background refresh started", slog.String("interval", cfg.Sync.RefreshInterval.String()))
			if err := refresher.Run(ctx); err != nil {
				logger.Error("background refresh failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
	<-refreshDone
}
