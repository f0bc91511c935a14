// Package bootstrap assembles the services shared by the dexsync binaries
// from a loaded config.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dexsync/dexsync/internal/cache"
	"github.com/dexsync/dexsync/internal/catalog/sqlstore"
	"github.com/dexsync/dexsync/internal/config"
	"github.com/dexsync/dexsync/internal/export"
	"github.com/dexsync/dexsync/internal/ingest"
	"github.com/dexsync/dexsync/internal/migrations"
	"github.com/dexsync/dexsync/internal/observability"
	"github.com/dexsync/dexsync/internal/pokeapi"
	"github.com/dexsync/dexsync/internal/refresh"
	s3store "github.com/dexsync/dexsync/internal/storage/s3"
)

// OpenStore opens the species store and applies pending migrations when
// AutoMigrate is set. The caller owns the returned *sql.DB.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, *sqlstore.Repository, error) {
	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		runner, err := migrations.NewRunner(cfg.Store.Driver)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		applied, err := runner.Up(migrateCtx, db, 0)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("auto-migrate species store: %w", err)
		}
		if applied > 0 && logger != nil {
			logger.Info("applied store migrations", slog.Int("count", applied))
		}
	}
	return db, sqlstore.NewRepository(db, cfg.Store.Driver), nil
}

func NewCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case config.CacheTypeLRU:
		return cache.NewLRU(cfg.MaxEntries, cfg.DefaultTTL), nil
	case config.CacheTypeNone:
		return cache.Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
	}
}

func NewIngestService(cfg config.Config, store ingest.Store, logger *slog.Logger) (*ingest.Service, error) {
	client, err := pokeapi.NewClient(pokeapi.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		return nil, err
	}
	payloads, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	return &ingest.Service{
		Store:   store,
		Cache:   payloads,
		Fetcher: client,
		Resolve: pokeapi.Resolve,
		Config: ingest.Config{
			StaleTTL: cfg.Sync.StaleTTL,
			CacheTTL: cfg.Cache.DefaultTTL,
		},
		Logger: observability.ForComponent(logger, "ingest"),
		Clock:  time.Now,
	}, nil
}

func NewRefreshService(cfg config.Config, store refresh.Store, ingester refresh.Ingester, logger *slog.Logger) *refresh.Service {
	return &refresh.Service{
		Store:    store,
		Ingester: ingester,
		Config: refresh.Config{
			Interval:  cfg.Sync.RefreshInterval,
			StaleTTL:  cfg.Sync.StaleTTL,
			BatchSize: cfg.Sync.RefreshBatchSize,
		},
		Logger: observability.ForComponent(logger, "refresh"),
		Clock:  time.Now,
	}
}

// NewExportService returns nil when exports are disabled.
func NewExportService(ctx context.Context, cfg config.Config, store export.Store, logger *slog.Logger) (*export.Service, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}
	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize object store: %w", err)
	}
	return &export.Service{Store: store, ObjectStore: objectStore, Logger: observability.ForComponent(logger, "export")}, nil
}

type BatchIngester interface {
	IngestMany(ctx context.Context, names []string) (ingest.BatchResult, error)
}

// SyncOnStart ingests the seed list when enabled. Failures are logged and
// never abort startup.
func SyncOnStart(ctx context.Context, cfg config.Config, readNames func(string) ([]string, error), ingester BatchIngester, logger *slog.Logger) {
	if !cfg.Sync.OnStart {
		logger.InfoContext(ctx, "startup sync disabled")
		return
	}
	names, err := readNames(cfg.Sync.SeedCSVPath)
	if err != nil {
		logger.WarnContext(ctx, "startup sync failed, boot continues", slog.Any("error", err))
		return
	}
	if len(names) == 0 {
		logger.InfoContext(ctx, "no seed entries found, skipping startup sync", slog.String("path", cfg.Sync.SeedCSVPath))
		return
	}
	logger.InfoContext(ctx, "starting startup sync", slog.Int("names", len(names)))
	result, err := ingester.IngestMany(ctx, names)
	if err != nil {
		logger.WarnContext(ctx, "startup sync failed, boot continues", slog.Any("error", err))
		return
	}
	logger.InfoContext(ctx, "startup sync done",
		slog.Int("ok", len(result.OK)),
		slog.Int("not_found", len(result.NotFound)),
		slog.Int("errors", len(result.Errors)),
	)
}
