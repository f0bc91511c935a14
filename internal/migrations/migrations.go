package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const ledgerTable = "dexsync_schema_migrations"

// Dialects match the store driver names.
const (
	DialectPostgres = "postgres"
	DialectDuckDB   = "duckdb"
)

// Script names are <version>_<label>[.<dialect>].<up|down>.sql. A script
// without a dialect is shared; a dialect script replaces the shared one.
var scriptNamePattern = regexp.MustCompile(`^([0-9]+)_([a-z0-9_]+?)(?:\.(postgres|duckdb))?\.(up|down)\.sql$`)

// Runner applies the embedded species schema for one store dialect.
type Runner struct {
	fsys    fs.FS
	dialect string
	now     func() time.Time
}

func NewRunner(driver string) (*Runner, error) {
	return newRunner(embeddedFS, driver)
}

func newRunner(fsys fs.FS, driver string) (*Runner, error) {
	dialect := strings.ToLower(strings.TrimSpace(driver))
	if dialect == "" {
		dialect = DialectPostgres
	}
	if dialect != DialectPostgres && dialect != DialectDuckDB {
		return nil, fmt.Errorf("unsupported migration dialect %q", driver)
	}
	return &Runner{fsys: fsys, dialect: dialect, now: time.Now}, nil
}

type migration struct {
	Version int64
	Label   string
	UpSQL   string
	DownSQL string
}

// Status reports one known version and whether it has been applied.
type Status struct {
	Version int64
	Label   string
	Applied bool
}

func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	items, err := loadMigrations(r.fsys, r.dialect)
	if err != nil {
		return 0, err
	}
	if err := r.ensureLedger(ctx, db); err != nil {
		return 0, err
	}
	applied, err := appliedVersions(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}
	done := versionSet(applied)

	runCount := 0
	for _, item := range items {
		if _, ok := done[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		if err := r.apply(ctx, db, item); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	items, err := loadMigrations(r.fsys, r.dialect)
	if err != nil {
		return 0, err
	}
	if err := r.ensureLedger(ctx, db); err != nil {
		return 0, err
	}
	applied, err := appliedVersions(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}

	byVersion := make(map[int64]migration, len(items))
	for _, item := range items {
		byVersion[item.Version] = item
	}

	runCount := 0
	for _, version := range applied {
		if runCount >= steps {
			break
		}
		item, ok := byVersion[version]
		if !ok {
			return runCount, fmt.Errorf("applied migration %d has no %s scripts", version, r.dialect)
		}
		if err := r.rollback(ctx, db, item); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

// Status lists every version this dialect knows about in ascending order.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	items, err := loadMigrations(r.fsys, r.dialect)
	if err != nil {
		return nil, err
	}
	if err := r.ensureLedger(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db, "ASC")
	if err != nil {
		return nil, err
	}
	done := versionSet(applied)

	out := make([]Status, 0, len(items))
	for _, item := range items {
		_, ok := done[item.Version]
		out = append(out, Status{Version: item.Version, Label: item.Label, Applied: ok})
	}
	return out, nil
}

// ensureLedger creates the version table. applied_at is written by the
// runner, so neither dialect relies on a server-side clock default.
func (r *Runner) ensureLedger(ctx context.Context, db *sql.DB) error {
	appliedAtType := "TIMESTAMPTZ"
	if r.dialect == DialectDuckDB {
		appliedAtType = "TIMESTAMP"
	}
	query := `
CREATE TABLE IF NOT EXISTS ` + ledgerTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at ` + appliedAtType + ` NOT NULL
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, db *sql.DB, item migration) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, item.UpSQL); err != nil {
			return fmt.Errorf("apply migration %d_%s: %w", item.Version, item.Label, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+ledgerTable+` (version, applied_at) VALUES ($1, $2)`, item.Version, r.now().UTC()); err != nil {
			return fmt.Errorf("mark migration %d: %w", item.Version, err)
		}
		return nil
	})
}

func (r *Runner) rollback(ctx context.Context, db *sql.DB, item migration) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, item.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d_%s: %w", item.Version, item.Label, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+ledgerTable+` WHERE version = $1`, item.Version); err != nil {
			return fmt.Errorf("unmark migration %d: %w", item.Version, err)
		}
		return nil
	})
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// execScript runs each statement of a script separately.
func execScript(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func appliedVersions(ctx context.Context, db *sql.DB, order string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+ledgerTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func versionSet(versions []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(versions))
	for _, version := range versions {
		set[version] = struct{}{}
	}
	return set
}

// loadMigrations resolves the scripts for dialect. A version that only ships
// scripts for another dialect does not exist for this one.
func loadMigrations(fsys fs.FS, dialect string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	type scripts struct {
		label                  string
		sharedUp, sharedDown   string
		dialectUp, dialectDown string
	}
	byVersion := map[int64]*scripts{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := scriptNamePattern.FindStringSubmatch(base)
		if matches == nil {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}
		label, scriptDialect, direction := matches[2], matches[3], matches[4]
		if scriptDialect != "" && scriptDialect != dialect {
			continue
		}

		body, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := byVersion[version]
		if item == nil {
			item = &scripts{label: label}
			byVersion[version] = item
		} else if item.label != label {
			return nil, fmt.Errorf("migration %d has conflicting labels %q and %q", version, item.label, label)
		}

		switch {
		case scriptDialect == "" && direction == "up":
			item.sharedUp = string(body)
		case scriptDialect == "":
			item.sharedDown = string(body)
		case direction == "up":
			item.dialectUp = string(body)
		default:
			item.dialectDown = string(body)
		}
	}

	versions := make([]int64, 0, len(byVersion))
	for version := range byVersion {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	items := make([]migration, 0, len(versions))
	for _, version := range versions {
		s := byVersion[version]
		up, down := s.sharedUp, s.sharedDown
		if s.dialectUp != "" {
			up = s.dialectUp
		}
		if s.dialectDown != "" {
			down = s.dialectDown
		}
		if strings.TrimSpace(up) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL for %s", version, dialect)
		}
		if strings.TrimSpace(down) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL for %s", version, dialect)
		}
		items = append(items, migration{Version: version, Label: s.label, UpSQL: up, DownSQL: down})
	}
	return items, nil
}
