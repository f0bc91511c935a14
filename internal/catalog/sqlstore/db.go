package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open connects to the species store. DuckDB runs embedded with a single
// connection so writers serialize; an empty DSN opens an in-memory database.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverPostgres, "":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store dsn is required")
		}
		db, err = sql.Open("pgx", cfg.DSN)
	case DriverDuckDB:
		db, err = sql.Open("duckdb", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if cfg.Driver == DriverDuckDB {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxIdleTime > 0 && cfg.Driver != DriverDuckDB {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 && cfg.Driver != DriverDuckDB {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store db: %w", err)
	}

	return db, nil
}
