package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dexsync/dexsync/internal/cli/dexsyncctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("DEXSYNC_CLI_TIMEOUT")), 30*time.Second)
	options := dexsyncctl.Options{
		BaseURL: envOr("DEXSYNC_API_URL", "http://localhost:8080"),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	os.Exit(dexsyncctl.Run(context.Background(), os.Args[1:], options))
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid DEXSYNC_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
