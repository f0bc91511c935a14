package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

type upstreamPayload struct {
	ID             *int     `json:"id"`
	Name           string   `json:"name"`
	Height         *float64 `json:"height"`
	Weight         *float64 `json:"weight"`
	BaseExperience *int     `json:"base_experience"`
	Stats          []struct {
		BaseStat int `json:"base_stat"`
		Stat     struct {
			Name string `json:"name"`
		} `json:"stat"`
	} `json:"stats"`
	Types []struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Abilities []struct {
		Ability struct {
			Name string `json:"name"`
		} `json:"ability"`
	} `json:"abilities"`
}

// Normalize converts a raw upstream species document into upsert fields.
// Heights arrive in decimeters and weights in hectograms.
func Normalize(raw []byte) (UpsertSpeciesInput, error) {
	var payload upstreamPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return UpsertSpeciesInput{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.ID == nil {
		return UpsertSpeciesInput{}, fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}
	name := strings.ToLower(strings.TrimSpace(payload.Name))
	if name == "" {
		return UpsertSpeciesInput{}, fmt.Errorf("%w: missing name", ErrMalformedPayload)
	}

	out := UpsertSpeciesInput{
		Name:           name,
		DexNumber:      *payload.ID,
		BaseExperience: payload.BaseExperience,
		Stats:          make(map[string]int, len(StatKeys)),
		Types:          make([]string, 0, len(payload.Types)),
		Abilities:      make([]string, 0, len(payload.Abilities)),
	}
	if payload.Height != nil {
		out.HeightM = *payload.Height / 10
	}
	if payload.Weight != nil {
		out.WeightKg = *payload.Weight / 10
	}

	for _, key := range StatKeys {
		out.Stats[key] = 0
	}
	for _, entry := range payload.Stats {
		if _, ok := out.Stats[entry.Stat.Name]; !ok {
			continue
		}
		out.Stats[entry.Stat.Name] = max(entry.BaseStat, 0)
	}
	for _, entry := range payload.Types {
		out.Types = append(out.Types, strings.ToLower(entry.Type.Name))
	}
	for _, entry := range payload.Abilities {
		out.Abilities = append(out.Abilities, strings.ToLower(entry.Ability.Name))
	}
	return out, nil
}
