package migrations

import (
	"strings"
	"testing"
)

func TestSpeciesMigrationDefinesTable(t *testing.T) {
	body, err := embeddedFS.ReadFile("sql/000001_species.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	sql := string(body)
	requiredSnippets := []string{
		"CREATE TABLE species",
		"id TEXT PRIMARY KEY",
		"name TEXT NOT NULL UNIQUE",
		"pokedex_number INTEGER NOT NULL",
		"base_experience INTEGER,",
		"stats_json TEXT NOT NULL",
		"types_json TEXT NOT NULL",
		"abilities_json TEXT NOT NULL",
		"refreshed_at TIMESTAMPTZ\n",
	}
	for _, snippet := range requiredSnippets {
		if !strings.Contains(sql, snippet) {
			t.Fatalf("migration missing required snippet: %s", snippet)
		}
	}
}

func TestSpeciesDownMigrationDropsTable(t *testing.T) {
	body, err := embeddedFS.ReadFile("sql/000001_species.down.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(body), "DROP TABLE IF EXISTS species") {
		t.Fatalf("down migration = %q", body)
	}
}
