package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dexsync/dexsync/internal/catalog"
)

const defaultListLimit = 200

type typesRequest struct {
	Types []string `json:"types"`
}

func handleListSpecies(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSpecies(deps, w, r) {
		return
	}
	records, err := deps.Species.ListSpecies(r.Context(), catalog.ListSpeciesInput{
		NameContains: strings.TrimSpace(r.URL.Query().Get("name")),
		Limit:        parseLimit(r),
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list species", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func handleGetSpeciesByID(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSpecies(deps, w, r) {
		return
	}
	record, err := deps.Species.GetSpeciesByID(r.Context(), strings.TrimSpace(r.PathValue("id")))
	writeSpecies(w, r, record, err)
}

func handleGetSpeciesByName(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSpecies(deps, w, r) {
		return
	}
	name := strings.ToLower(strings.TrimSpace(r.PathValue("name")))
	record, err := deps.Species.GetSpeciesByName(r.Context(), name)
	writeSpecies(w, r, record, err)
}

func handleGetSpeciesByDexNumber(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSpecies(deps, w, r) {
		return
	}
	number, err := strconv.Atoi(strings.TrimSpace(r.PathValue("number")))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DEX_NUMBER", "pokedex number must be an integer", false, map[string]any{"number": r.PathValue("number")})
		return
	}
	record, err := deps.Species.GetSpeciesByDexNumber(r.Context(), number)
	writeSpecies(w, r, record, err)
}

// handleListSpeciesByType matches species carrying any of the requested
// types, in name order.
func handleListSpeciesByType(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSpecies(deps, w, r) {
		return
	}
	var request typesRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid types request body", false, map[string]any{"details": err.Error()})
		return
	}
	types := normalizeTypes(request.Types)
	if len(types) == 0 {
		writeJSON(w, http.StatusOK, []catalog.Species{})
		return
	}
	records, err := deps.Species.ListAllSpecies(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list species", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, catalog.FilterByTypes(records, types, parseLimit(r)))
}

func handleDeleteSpecies(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSpecies(deps, w, r) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	deleted, err := deps.Species.DeleteSpecies(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to delete species", true, map[string]any{"details": err.Error()})
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "species not found", false, map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireSpecies(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Species == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SPECIES_NOT_CONFIGURED", "species store is not configured", false, nil)
		return false
	}
	return true
}

func writeSpecies(w http.ResponseWriter, r *http.Request, record catalog.Species, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "species not found", false, nil)
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load species", true, map[string]any{"details": err.Error()})
	default:
		writeJSON(w, http.StatusOK, record)
	}
}

// parseLimit falls back to the default for missing, malformed or
// non-positive values.
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func normalizeTypes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
