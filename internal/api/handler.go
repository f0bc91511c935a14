package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dexsync/dexsync/internal/catalog"
	"github.com/dexsync/dexsync/internal/config"
	"github.com/dexsync/dexsync/internal/export"
	"github.com/dexsync/dexsync/internal/ingest"
	"github.com/dexsync/dexsync/internal/observability"
	"github.com/dexsync/dexsync/internal/refresh"
)

type ReadinessCheck func(ctx context.Context) error

type SpeciesRepository interface {
	GetSpeciesByID(ctx context.Context, id string) (catalog.Species, error)
	GetSpeciesByName(ctx context.Context, name string) (catalog.Species, error)
	GetSpeciesByDexNumber(ctx context.Context, number int) (catalog.Species, error)
	ListSpecies(ctx context.Context, in catalog.ListSpeciesInput) ([]catalog.Species, error)
	ListAllSpecies(ctx context.Context) ([]catalog.Species, error)
	DeleteSpecies(ctx context.Context, id string) (bool, error)
}

type Ingester interface {
	IngestMany(ctx context.Context, names []string) (ingest.BatchResult, error)
}

type RefreshRunner interface {
	RunOnce(ctx context.Context) (refresh.Summary, error)
}

type ExportRunner interface {
	RunOnce(ctx context.Context) (export.Summary, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Species           SpeciesRepository
	Ingester          Ingester
	SeedNames         func() ([]string, error)
	Refresher         RefreshRunner
	Exporter          ExportRunner
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/species", func(w http.ResponseWriter, r *http.Request) {
		handleAddSpecies(deps, w, r)
	})
	mux.HandleFunc("POST /v1/ingest", func(w http.ResponseWriter, r *http.Request) {
		handleIngest(deps, w, r)
	})
	mux.HandleFunc("GET /v1/species", func(w http.ResponseWriter, r *http.Request) {
		handleListSpecies(deps, w, r)
	})
	mux.HandleFunc("GET /v1/species/id/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSpeciesByID(deps, w, r)
	})
	mux.HandleFunc("GET /v1/species/name/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSpeciesByName(deps, w, r)
	})
	mux.HandleFunc("GET /v1/species/dex/{number}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSpeciesByDexNumber(deps, w, r)
	})
	mux.HandleFunc("POST /v1/species/by-type", func(w http.ResponseWriter, r *http.Request) {
		handleListSpeciesByType(deps, w, r)
	})
	mux.HandleFunc("DELETE /v1/species/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteSpecies(deps, w, r)
	})

	mux.HandleFunc("POST /v1/refresh/run", func(w http.ResponseWriter, r *http.Request) {
		handleRefreshRun(deps, w, r)
	})
	mux.HandleFunc("POST /v1/export/run", func(w http.ResponseWriter, r *http.Request) {
		handleExportRun(cfg, deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
