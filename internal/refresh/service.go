package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dexsync/dexsync/internal/catalog"
	"github.com/dexsync/dexsync/internal/ingest"
)

var ErrRunInFlight = errors.New("refresh: run already in flight")

type Store interface {
	ListStaleSpecies(ctx context.Context, cutoff time.Time, limit int) ([]catalog.Species, error)
}

type Ingester interface {
	IngestMany(ctx context.Context, names []string) (ingest.BatchResult, error)
}

type Config struct {
	Interval  time.Duration
	StaleTTL  time.Duration
	BatchSize int
}

// Service re-syncs the oldest stale records on a fixed interval. At most one
// cycle runs at a time; ticks and manual triggers that arrive while a cycle
// is running are skipped.
type Service struct {
	Store    Store
	Ingester Ingester
	Config   Config
	Logger   *slog.Logger
	Clock    func() time.Time

	running      atomic.Bool
	defaultsOnce sync.Once
}

type Summary struct {
	Selected int      `json:"selected"`
	OK       int      `json:"ok"`
	NotFound int      `json:"not_found"`
	Failures int      `json:"failures"`
	Names    []string `json:"names"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()
	if s.Config.Interval <= 0 {
		return fmt.Errorf("refresh interval must be > 0")
	}

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.tick(ctx)
			}()
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	summary, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInFlight):
		observeRun("skipped", 0)
		if s.Logger != nil {
			s.Logger.InfoContext(ctx, "refresh tick skipped, previous cycle still running")
		}
	case err != nil:
		if s.Logger != nil {
			s.Logger.ErrorContext(ctx, "refresh cycle failed", slog.Any("error", err), slog.Any("summary", summary))
		}
	case summary.Selected > 0:
		if s.Logger != nil {
			s.Logger.InfoContext(ctx, "refresh cycle completed", slog.Any("summary", summary))
		}
	}
}

// RunOnce runs a single refresh cycle. It returns ErrRunInFlight without doing
// any work when another cycle holds the guard.
func (s *Service) RunOnce(ctx context.Context) (summary Summary, err error) {
	s.ensureDefaults()
	if s.Store == nil {
		return Summary{}, fmt.Errorf("store is required")
	}
	if s.Ingester == nil {
		return Summary{}, fmt.Errorf("ingester is required")
	}
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInFlight
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("refresh cycle panic: %v", recovered)
			if s.Logger != nil {
				s.Logger.ErrorContext(ctx, "refresh cycle panicked",
					slog.Any("panic", recovered),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}
		status := "success"
		if err != nil {
			status = "failed"
		}
		observeRun(status, time.Since(start))
	}()

	cutoff := catalog.StaleCutoff(s.Clock(), s.Config.StaleTTL)
	stale, err := s.Store.ListStaleSpecies(ctx, cutoff, s.Config.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("list stale species: %w", err)
	}
	summary = Summary{Selected: len(stale), Names: make([]string, 0, len(stale))}
	if len(stale) == 0 {
		return summary, nil
	}
	for _, record := range stale {
		summary.Names = append(summary.Names, record.Name)
	}

	result, err := s.Ingester.IngestMany(ctx, summary.Names)
	summary.OK = len(result.OK)
	summary.NotFound = len(result.NotFound)
	summary.Failures = len(result.Errors)
	refreshedSpeciesTotal.Add(float64(summary.OK))
	if err != nil {
		return summary, fmt.Errorf("ingest stale species: %w", err)
	}
	return summary, nil
}

// Running reports whether a cycle currently holds the in-flight guard.
func (s *Service) Running() bool {
	return s.running.Load()
}

func (s *Service) ensureDefaults() {
	s.defaultsOnce.Do(func() {
		if s.Clock == nil {
			s.Clock = time.Now
		}
		if s.Config.BatchSize <= 0 {
			s.Config.BatchSize = 50
		}
		if s.Config.StaleTTL <= 0 {
			s.Config.StaleTTL = 24 * time.Hour
		}
	})
}
