package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/dexsync/dexsync/internal/catalog"
)

type parquetSpecies struct {
	ID                string  `parquet:"id"`
	Name              string  `parquet:"name"`
	DexNumber         int64   `parquet:"pokedex_number"`
	HeightM           float64 `parquet:"height_m"`
	WeightKg          float64 `parquet:"weight_kg"`
	BaseExperience    *int64  `parquet:"base_experience,optional"`
	HP                int64   `parquet:"hp"`
	Attack            int64   `parquet:"attack"`
	Defense           int64   `parquet:"defense"`
	SpecialAttack     int64   `parquet:"special_attack"`
	SpecialDefense    int64   `parquet:"special_defense"`
	Speed             int64   `parquet:"speed"`
	TypesJSON         string  `parquet:"types_json"`
	AbilitiesJSON     string  `parquet:"abilities_json"`
	CreatedAtUnixMs   int64   `parquet:"created_at_unix_ms"`
	RefreshedAtUnixMs *int64  `parquet:"refreshed_at_unix_ms,optional"`
}

// EncodeSpeciesToParquet writes one row per record with stats flattened into
// fixed columns.
func EncodeSpeciesToParquet(records []catalog.Species) ([]byte, error) {
	rows := make([]parquetSpecies, 0, len(records))
	for _, record := range records {
		row, err := toParquetRow(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetSpecies](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func toParquetRow(record catalog.Species) (parquetSpecies, error) {
	typesJSON, err := jsonList(record.Types)
	if err != nil {
		return parquetSpecies{}, fmt.Errorf("encode types for %q: %w", record.Name, err)
	}
	abilitiesJSON, err := jsonList(record.Abilities)
	if err != nil {
		return parquetSpecies{}, fmt.Errorf("encode abilities for %q: %w", record.Name, err)
	}
	row := parquetSpecies{
		ID:              record.ID,
		Name:            record.Name,
		DexNumber:       int64(record.DexNumber),
		HeightM:         record.HeightM,
		WeightKg:        record.WeightKg,
		HP:              int64(record.Stats["hp"]),
		Attack:          int64(record.Stats["attack"]),
		Defense:         int64(record.Stats["defense"]),
		SpecialAttack:   int64(record.Stats["special-attack"]),
		SpecialDefense:  int64(record.Stats["special-defense"]),
		Speed:           int64(record.Stats["speed"]),
		TypesJSON:       typesJSON,
		AbilitiesJSON:   abilitiesJSON,
		CreatedAtUnixMs: record.CreatedAt.UnixMilli(),
	}
	if record.BaseExperience != nil {
		value := int64(*record.BaseExperience)
		row.BaseExperience = &value
	}
	if record.RefreshedAt != nil {
		value := record.RefreshedAt.UnixMilli()
		row.RefreshedAtUnixMs = &value
	}
	return row, nil
}

func jsonList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
