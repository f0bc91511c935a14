package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dexsync/dexsync/internal/ingest"
	"github.com/dexsync/dexsync/internal/pokeapi"
)

type namesRequest struct {
	Names []string `json:"names"`
}

func handleAddSpecies(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ingester == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INGEST_NOT_CONFIGURED", "ingest service is not configured", false, nil)
		return
	}
	request, ok := decodeNamesRequest(w, r, false)
	if !ok {
		return
	}
	names := pokeapi.NormalizeNames(request.Names)
	if len(names) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "NAMES_REQUIRED", "at least one non-empty name is required", false, nil)
		return
	}
	runIngest(deps, w, r, names)
}

// handleIngest falls back to the seed list when the request names nothing.
func handleIngest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ingester == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INGEST_NOT_CONFIGURED", "ingest service is not configured", false, nil)
		return
	}
	request, ok := decodeNamesRequest(w, r, true)
	if !ok {
		return
	}
	names := pokeapi.NormalizeNames(request.Names)
	if len(names) == 0 && deps.SeedNames != nil {
		seeded, err := deps.SeedNames()
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "SEED_UNAVAILABLE", "failed to read seed list", false, map[string]any{"details": err.Error()})
			return
		}
		names = seeded
	}
	runIngest(deps, w, r, names)
}

func decodeNamesRequest(w http.ResponseWriter, r *http.Request, allowEmpty bool) (namesRequest, bool) {
	var request namesRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return namesRequest{}, true
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid names request body", false, map[string]any{"details": err.Error()})
		return namesRequest{}, false
	}
	return request, true
}

func runIngest(deps Dependencies, w http.ResponseWriter, r *http.Request, names []string) {
	result, err := deps.Ingester.IngestMany(r.Context(), names)
	switch {
	case errors.Is(err, ingest.ErrStoreUnavailable):
		writeError(r.Context(), w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "species store is unavailable", true, map[string]any{"details": err.Error()})
	case errors.Is(err, ingest.ErrFlush):
		writeError(r.Context(), w, http.StatusInternalServerError, "FLUSH_FAILED", "ingested species could not be flushed", true, map[string]any{
			"details": err.Error(),
			"result":  result,
		})
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "INGEST_FAILED", "ingest batch failed", true, map[string]any{"details": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, result)
	}
}
