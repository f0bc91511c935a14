package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("catalog: not found")
	ErrMalformedPayload = errors.New("catalog: malformed upstream payload")
)

// StatKeys lists the canonical base stats in upstream order. Every stored
// record carries exactly these keys.
var StatKeys = []string{
	"hp",
	"attack",
	"defense",
	"special-attack",
	"special-defense",
	"speed",
}

type Repository interface {
	HealthCheck(ctx context.Context) error
	GetSpeciesByName(ctx context.Context, name string) (Species, error)
	GetSpeciesByID(ctx context.Context, id string) (Species, error)
	GetSpeciesByDexNumber(ctx context.Context, number int) (Species, error)
	ListSpecies(ctx context.Context, in ListSpeciesInput) ([]Species, error)
	ListAllSpecies(ctx context.Context) ([]Species, error)
	ListStaleSpecies(ctx context.Context, cutoff time.Time, limit int) ([]Species, error)
	UpsertSpecies(ctx context.Context, in UpsertSpeciesInput) (Species, error)
	DeleteSpecies(ctx context.Context, id string) (bool, error)
	Flush(ctx context.Context) error
}

type Species struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	DexNumber      int            `json:"pokedex_number"`
	HeightM        float64        `json:"height_m"`
	WeightKg       float64        `json:"weight_kg"`
	BaseExperience *int           `json:"base_experience"`
	Stats          map[string]int `json:"stats"`
	Types          []string       `json:"types"`
	Abilities      []string       `json:"abilities"`
	CreatedAt      time.Time      `json:"created_at"`
	RefreshedAt    *time.Time     `json:"refreshed_at"`
}

type UpsertSpeciesInput struct {
	Name           string
	DexNumber      int
	HeightM        float64
	WeightKg       float64
	BaseExperience *int
	Stats          map[string]int
	Types          []string
	Abilities      []string
	RefreshedAt    time.Time
}

type ListSpeciesInput struct {
	NameContains string
	Limit        int
}

// IsStale reports whether a record synced at refreshedAt needs a refresh at
// now. A record that was never synced is always stale.
func IsStale(refreshedAt *time.Time, now time.Time, ttl time.Duration) bool {
	if refreshedAt == nil {
		return true
	}
	return refreshedAt.Before(StaleCutoff(now, ttl))
}

// StaleCutoff is the oldest refresh time still considered fresh.
func StaleCutoff(now time.Time, ttl time.Duration) time.Time {
	return now.Add(-ttl)
}

// FilterByTypes keeps records carrying at least one of the wanted types.
// Input order is preserved and each record appears at most once.
func FilterByTypes(records []Species, types []string, limit int) []Species {
	out := make([]Species, 0)
	if len(types) == 0 {
		return out
	}
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	for _, record := range records {
		if limit > 0 && len(out) >= limit {
			break
		}
		for _, t := range record.Types {
			if _, ok := wanted[t]; ok {
				out = append(out, record)
				break
			}
		}
	}
	return out
}
