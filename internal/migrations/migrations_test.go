package migrations

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var appliedNow = time.Date(2026, time.February, 19, 12, 0, 0, 0, time.UTC)

func TestEmbeddedSpeciesScriptsPerDialect(t *testing.T) {
	postgres, err := loadMigrations(embeddedFS, DialectPostgres)
	if err != nil {
		t.Fatalf("loadMigrations(postgres) error = %v", err)
	}
	if len(postgres) != 2 || postgres[0].Label != "species" || postgres[1].Label != "species_refresh_index" {
		t.Fatalf("postgres migrations = %+v", postgres)
	}
	if !strings.Contains(postgres[1].UpSQL, "species_refreshed_at_idx") {
		t.Fatalf("postgres index migration = %q", postgres[1].UpSQL)
	}

	duck, err := loadMigrations(embeddedFS, DialectDuckDB)
	if err != nil {
		t.Fatalf("loadMigrations(duckdb) error = %v", err)
	}
	if len(duck) != 1 || duck[0].Version != 1 {
		t.Fatalf("duckdb migrations = %+v", duck)
	}
	if duck[0].UpSQL != postgres[0].UpSQL {
		t.Fatal("species table script should be shared by both dialects")
	}
}

func TestLoadMigrationsPrefersDialectScripts(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_species.up.sql":          {Data: []byte("CREATE TABLE species (refreshed_at TIMESTAMPTZ);")},
		"sql/000001_species.duckdb.up.sql":   {Data: []byte("CREATE TABLE species (refreshed_at TIMESTAMP);")},
		"sql/000001_species.down.sql":        {Data: []byte("DROP TABLE species;")},
		"sql/000002_extra.postgres.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_extra.postgres.down.sql": {Data: []byte("SELECT -2;")},
		"sql/README.md":                      {Data: []byte("ignored")},
	}

	items, err := loadMigrations(fsys, DialectDuckDB)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if !strings.Contains(items[0].UpSQL, "TIMESTAMP)") || items[0].DownSQL != "DROP TABLE species;" {
		t.Fatalf("duckdb species scripts = %+v", items[0])
	}

	items, err = loadMigrations(fsys, DialectPostgres)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 || !strings.Contains(items[0].UpSQL, "TIMESTAMPTZ") {
		t.Fatalf("postgres migrations = %+v", items)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_species.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(fsys, DialectDuckDB)
	if err == nil || !strings.Contains(err.Error(), "missing down SQL for duckdb") {
		t.Fatalf("loadMigrations() error = %v", err)
	}
}

func TestLoadMigrationsRejectsConflictingLabels(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_species.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_pokemon.down.sql": {Data: []byte("SELECT -1;")},
	}
	if _, err := loadMigrations(fsys, DialectPostgres); err == nil {
		t.Fatal("expected error for conflicting labels")
	}
}

func TestNewRunnerRejectsUnknownDialect(t *testing.T) {
	if _, err := NewRunner("sqlite"); err == nil {
		t.Fatal("expected error for sqlite")
	}
	runner, err := NewRunner("")
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if runner.dialect != DialectPostgres {
		t.Fatalf("dialect = %q", runner.dialect)
	}
}

func TestSplitStatementsDropsCommentsAndBlanks(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (id INT);\n\n;CREATE INDEX b ON a (id);\n")
	want := []string{"CREATE TABLE a (id INT)", "CREATE INDEX b ON a (id)"}
	if len(got) != len(want) {
		t.Fatalf("splitStatements() = %#v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUpOnDuckDBUsesPlainTimestampLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := newTestRunner(t, DialectDuckDB)
	mock.ExpectExec(regexp.QuoteMeta(`applied_at TIMESTAMP NOT NULL`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM dexsync_schema_migrations ORDER BY version ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE species (`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dexsync_schema_migrations (version, applied_at) VALUES ($1, $2)`)).
		WithArgs(int64(1), appliedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpOnPostgresSkipsAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := newTestRunner(t, DialectPostgres)
	mock.ExpectExec(regexp.QuoteMeta(`applied_at TIMESTAMPTZ NOT NULL`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM dexsync_schema_migrations ORDER BY version ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS species_refreshed_at_idx`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dexsync_schema_migrations`)).
		WithArgs(int64(2), appliedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackNewestVersionFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := newTestRunner(t, DialectPostgres)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS dexsync_schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY version DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP INDEX IF EXISTS species_refreshed_at_idx`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM dexsync_schema_migrations WHERE version = $1`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rolledBack, err := runner.Down(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("rolledBack = %d, want 1", rolledBack)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownFailsForVersionUnknownToDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := newTestRunner(t, DialectDuckDB)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS dexsync_schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY version DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))

	if _, err := runner.Down(context.Background(), db, 1); err == nil || !strings.Contains(err.Error(), "no duckdb scripts") {
		t.Fatalf("Down() error = %v", err)
	}
}

func TestStatusReportsPendingVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := newTestRunner(t, DialectPostgres)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS dexsync_schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY version ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))

	items, err := runner.Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(items) != 2 || !items[0].Applied || items[1].Applied || items[1].Label != "species_refresh_index" {
		t.Fatalf("Status() = %+v", items)
	}
}

func newTestRunner(t *testing.T, dialect string) *Runner {
	t.Helper()
	runner, err := NewRunner(dialect)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	runner.now = func() time.Time { return appliedNow }
	return runner
}
