package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dexsync/dexsync/internal/catalog/sqlstore"
	"github.com/dexsync/dexsync/internal/config"
	"github.com/dexsync/dexsync/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("dexsync-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner, err := migrations.NewRunner(cfg.Store.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration runner error: %v\n", err)
		os.Exit(1)
	}
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	case "status":
		items, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		for _, item := range items {
			state := "pending"
			if item.Applied {
				state = "applied"
			}
			fmt.Printf("%06d_%s\t%s\n", item.Version, item.Label, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
