package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dexsync/dexsync/internal/bootstrap"
	"github.com/dexsync/dexsync/internal/config"
	"github.com/dexsync/dexsync/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("dexsync-refresher")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	if cfg.Sync.DisableBackgroundRefresh {
		logger.Info("background refresh disabled by configuration, exiting")
		return
	}

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
	svc := bootstrap.NewRefreshService(cfg, repo, ingester, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("refresher worker started", slog.String("interval", cfg.Sync.RefreshInterval.String()))
	if err := svc.Run(ctx); err != nil {
		logger.Error("refresher worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("refresher worker stopped")
}
