package api

import (
	"errors"
	"net/http"

	"github.com/dexsync/dexsync/internal/config"
	"github.com/dexsync/dexsync/internal/refresh"
)

func handleRefreshRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Refresher == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REFRESH_NOT_CONFIGURED", "refresh service is not configured", false, nil)
		return
	}

	summary, err := deps.Refresher.RunOnce(r.Context())
	if errors.Is(err, refresh.ErrRunInFlight) {
		writeError(r.Context(), w, http.StatusConflict, "REFRESH_IN_FLIGHT", "a refresh cycle is already running", true, nil)
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "REFRESH_FAILED", "refresh run failed", true, map[string]any{
			"details": err.Error(),
			"summary": summary,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"summary": summary,
	})
}

func handleExportRun(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !cfg.Export.Enabled || deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "species export is not enabled", false, nil)
		return
	}

	summary, err := deps.Exporter.RunOnce(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "export run failed", true, map[string]any{
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
