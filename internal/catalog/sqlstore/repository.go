package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dexsync/dexsync/internal/catalog"
)

const selectSpecies = `
SELECT id, name, pokedex_number, height_m, weight_kg, base_experience, stats_json, types_json, abilities_json, created_at, refreshed_at
FROM species`

// Repository stores species in a single table. The same SQL runs on Postgres
// and DuckDB; only Flush differs between them.
type Repository struct {
	db     *sql.DB
	driver string
	newID  func() string
}

func NewRepository(db *sql.DB, driver string) *Repository {
	if driver == "" {
		driver = DriverPostgres
	}
	return &Repository{db: db, driver: driver, newID: uuid.NewString}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store db: %w", err)
	}
	return nil
}

func (r *Repository) GetSpeciesByName(ctx context.Context, name string) (catalog.Species, error) {
	query := selectSpecies + `
WHERE name = $1`
	species, err := scanSpecies(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return catalog.Species{}, wrapScanErr("get species by name", err)
	}
	return species, nil
}

func (r *Repository) GetSpeciesByID(ctx context.Context, id string) (catalog.Species, error) {
	query := selectSpecies + `
WHERE id = $1`
	species, err := scanSpecies(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return catalog.Species{}, wrapScanErr("get species by id", err)
	}
	return species, nil
}

// GetSpeciesByDexNumber returns the alphabetically first record when several
// forms share a number.
func (r *Repository) GetSpeciesByDexNumber(ctx context.Context, number int) (catalog.Species, error) {
	query := selectSpecies + `
WHERE pokedex_number = $1
ORDER BY name ASC
LIMIT 1`
	species, err := scanSpecies(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		return catalog.Species{}, wrapScanErr("get species by dex number", err)
	}
	return species, nil
}

func (r *Repository) ListSpecies(ctx context.Context, in catalog.ListSpeciesInput) ([]catalog.Species, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 200
	}
	if strings.TrimSpace(in.NameContains) == "" {
		query := selectSpecies + `
ORDER BY name ASC
LIMIT $1`
		return r.querySpecies(ctx, "list species", query, limit)
	}

	query := selectSpecies + `
WHERE name ILIKE $1 ESCAPE '\'
ORDER BY name ASC
LIMIT $2`
	return r.querySpecies(ctx, "list species", query, containsPattern(in.NameContains), limit)
}

func (r *Repository) ListAllSpecies(ctx context.Context) ([]catalog.Species, error) {
	query := selectSpecies + `
ORDER BY name ASC`
	return r.querySpecies(ctx, "list all species", query)
}

// ListStaleSpecies returns never-synced records first, then the oldest
// refreshed ones.
func (r *Repository) ListStaleSpecies(ctx context.Context, cutoff time.Time, limit int) ([]catalog.Species, error) {
	if limit <= 0 {
		return []catalog.Species{}, nil
	}
	query := selectSpecies + `
WHERE refreshed_at IS NULL OR refreshed_at < $1
ORDER BY refreshed_at ASC NULLS FIRST, name ASC
LIMIT $2`
	return r.querySpecies(ctx, "list stale species", query, cutoff.UTC(), limit)
}

// UpsertSpecies creates or fully overwrites the record keyed by name in one
// statement. The id and created_at of an existing row never change and
// refreshed_at never moves backwards.
func (r *Repository) UpsertSpecies(ctx context.Context, in catalog.UpsertSpeciesInput) (catalog.Species, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return catalog.Species{}, fmt.Errorf("species name is required")
	}
	stats := make(map[string]int, len(catalog.StatKeys))
	for _, key := range catalog.StatKeys {
		stats[key] = max(in.Stats[key], 0)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return catalog.Species{}, fmt.Errorf("marshal stats: %w", err)
	}
	typesJSON, err := marshalList(in.Types)
	if err != nil {
		return catalog.Species{}, fmt.Errorf("marshal types: %w", err)
	}
	abilitiesJSON, err := marshalList(in.Abilities)
	if err != nil {
		return catalog.Species{}, fmt.Errorf("marshal abilities: %w", err)
	}
	refreshedAt := in.RefreshedAt
	if refreshedAt.IsZero() {
		refreshedAt = time.Now()
	}
	var baseExperience any
	if in.BaseExperience != nil {
		baseExperience = *in.BaseExperience
	}

	query := `
INSERT INTO species (id, name, pokedex_number, height_m, weight_kg, base_experience, stats_json, types_json, abilities_json, refreshed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (name) DO UPDATE SET
	pokedex_number = EXCLUDED.pokedex_number,
	height_m = EXCLUDED.height_m,
	weight_kg = EXCLUDED.weight_kg,
	base_experience = EXCLUDED.base_experience,
	stats_json = EXCLUDED.stats_json,
	types_json = EXCLUDED.types_json,
	abilities_json = EXCLUDED.abilities_json,
	refreshed_at = GREATEST(COALESCE(species.refreshed_at, EXCLUDED.refreshed_at), EXCLUDED.refreshed_at)
RETURNING id, name, pokedex_number, height_m, weight_kg, base_experience, stats_json, types_json, abilities_json, created_at, refreshed_at`

	species, err := scanSpecies(r.db.QueryRowContext(ctx, query,
		r.newID(),
		name,
		in.DexNumber,
		in.HeightM,
		in.WeightKg,
		baseExperience,
		string(statsJSON),
		string(typesJSON),
		string(abilitiesJSON),
		refreshedAt.UTC(),
	))
	if err != nil {
		return catalog.Species{}, fmt.Errorf("upsert species %q: %w", name, err)
	}
	return species, nil
}

func (r *Repository) DeleteSpecies(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM species
WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete species: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete species rows affected: %w", err)
	}
	return affected > 0, nil
}

// Flush makes writes durable beyond the per-statement guarantee. Postgres
// already commits each upsert; DuckDB checkpoints its write-ahead log.
func (r *Repository) Flush(ctx context.Context) error {
	if r.driver != DriverDuckDB {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `CHECKPOINT`); err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	return nil
}

func (r *Repository) querySpecies(ctx context.Context, op, query string, args ...any) ([]catalog.Species, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]catalog.Species, 0)
	for rows.Next() {
		species, err := scanSpecies(rows)
		if err != nil {
			return nil, fmt.Errorf("scan species row: %w", err)
		}
		out = append(out, species)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate species rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpecies(row rowScanner) (catalog.Species, error) {
	var (
		species        catalog.Species
		baseExperience sql.NullInt64
		statsJSON      string
		typesJSON      string
		abilitiesJSON  string
		refreshedAt    sql.NullTime
	)
	if err := row.Scan(
		&species.ID,
		&species.Name,
		&species.DexNumber,
		&species.HeightM,
		&species.WeightKg,
		&baseExperience,
		&statsJSON,
		&typesJSON,
		&abilitiesJSON,
		&species.CreatedAt,
		&refreshedAt,
	); err != nil {
		return catalog.Species{}, err
	}
	if baseExperience.Valid {
		value := int(baseExperience.Int64)
		species.BaseExperience = &value
	}
	if refreshedAt.Valid {
		value := refreshedAt.Time.UTC()
		species.RefreshedAt = &value
	}
	species.CreatedAt = species.CreatedAt.UTC()

	species.Stats = make(map[string]int, len(catalog.StatKeys))
	if err := json.Unmarshal([]byte(statsJSON), &species.Stats); err != nil {
		return catalog.Species{}, fmt.Errorf("decode stats_json: %w", err)
	}
	for _, key := range catalog.StatKeys {
		if _, ok := species.Stats[key]; !ok {
			species.Stats[key] = 0
		}
	}
	if err := json.Unmarshal([]byte(typesJSON), &species.Types); err != nil {
		return catalog.Species{}, fmt.Errorf("decode types_json: %w", err)
	}
	if err := json.Unmarshal([]byte(abilitiesJSON), &species.Abilities); err != nil {
		return catalog.Species{}, fmt.Errorf("decode abilities_json: %w", err)
	}
	if species.Types == nil {
		species.Types = []string{}
	}
	if species.Abilities == nil {
		species.Abilities = []string{}
	}
	return species, nil
}

func wrapScanErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func containsPattern(fragment string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(fragment))
	return "%" + escaped + "%"
}
