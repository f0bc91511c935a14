package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dexsync/dexsync/internal/cache"
	"github.com/dexsync/dexsync/internal/catalog"
	"github.com/dexsync/dexsync/internal/observability"
	"github.com/dexsync/dexsync/internal/pokeapi"
)

var (
	ErrStoreUnavailable = errors.New("ingest: store unavailable")
	ErrFlush            = errors.New("ingest: flush failed")
)

type Store interface {
	HealthCheck(ctx context.Context) error
	GetSpeciesByName(ctx context.Context, name string) (catalog.Species, error)
	UpsertSpecies(ctx context.Context, in catalog.UpsertSpeciesInput) (catalog.Species, error)
	Flush(ctx context.Context) error
}

type Fetcher interface {
	Fetch(ctx context.Context, slug string) pokeapi.FetchResult
}

type Config struct {
	StaleTTL time.Duration
	CacheTTL time.Duration
}

// Service runs requested names through store, cache and upstream. It is safe
// for concurrent use by the API and the background refresher.
type Service struct {
	Store   Store
	Cache   cache.Cache
	Fetcher Fetcher
	Resolve func(string) string
	Config  Config
	Logger  *slog.Logger
	Clock   func() time.Time

	defaultsOnce sync.Once
}

type NameError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BatchResult sorts every requested name into exactly one list, keeping
// request order within each list.
type BatchResult struct {
	OK       []string    `json:"ok"`
	NotFound []string    `json:"not_found"`
	Errors   []NameError `json:"errors"`
}

func newBatchResult() BatchResult {
	return BatchResult{OK: []string{}, NotFound: []string{}, Errors: []NameError{}}
}

func (r BatchResult) Total() int {
	return len(r.OK) + len(r.NotFound) + len(r.Errors)
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeNotFound
	outcomeFailed
)

type outcome struct {
	kind   outcomeKind
	name   string
	source string
	err    error
}

func succeeded(name, source string) outcome {
	return outcome{kind: outcomeOK, name: name, source: source}
}

func notFound() outcome {
	return outcome{kind: outcomeNotFound}
}

func failed(err error) outcome {
	return outcome{kind: outcomeFailed, err: err}
}

// IngestMany syncs each name in order. Per-name failures land in the result;
// the error is non-nil only when the store is unreachable up front or the
// closing flush fails. In the latter case the full result is still returned.
func (s *Service) IngestMany(ctx context.Context, names []string) (BatchResult, error) {
	s.ensureDefaults()
	result := newBatchResult()
	if len(names) == 0 {
		return result, nil
	}

	// Once started a batch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	if err := s.Store.HealthCheck(ctx); err != nil {
		return result, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	for _, requested := range names {
		out := s.ingestOne(ctx, requested)
		switch out.kind {
		case outcomeOK:
			result.OK = append(result.OK, out.name)
			observability.ObserveIngestSource(out.source)
		case outcomeNotFound:
			result.NotFound = append(result.NotFound, requested)
			s.Logger.InfoContext(ctx, "species not found upstream", slog.String("name", requested))
		case outcomeFailed:
			result.Errors = append(result.Errors, NameError{Name: requested, Error: out.err.Error()})
			s.Logger.WarnContext(ctx, "species ingest failed",
				slog.String("name", requested),
				slog.Any("error", out.err),
			)
		}
	}

	observability.ObserveIngestBatch(len(result.OK), len(result.NotFound), len(result.Errors), time.Since(start))
	s.Logger.InfoContext(ctx, "ingest batch completed",
		slog.Int("requested", len(names)),
		slog.Int("ok", len(result.OK)),
		slog.Int("not_found", len(result.NotFound)),
		slog.Int("errors", len(result.Errors)),
		slog.String("duration", time.Since(start).String()),
	)

	if err := s.Store.Flush(ctx); err != nil {
		return result, fmt.Errorf("%w: %w", ErrFlush, err)
	}
	return result, nil
}

func (s *Service) ingestOne(ctx context.Context, requested string) outcome {
	lookupName := strings.ToLower(strings.TrimSpace(requested))
	if lookupName == "" {
		return failed(errors.New("name is required"))
	}

	slug := s.Resolve(requested)
	existing, found, err := s.findStored(ctx, lookupName, strings.ToLower(slug))
	if err != nil {
		return failed(err)
	}
	if found && !catalog.IsStale(existing.RefreshedAt, s.Clock(), s.Config.StaleTTL) {
		s.Logger.DebugContext(ctx, "species fresh in store", slog.String("name", existing.Name))
		return succeeded(existing.Name, "store")
	}

	source := "cache"
	key := pokeapi.CacheKey(requested)
	payload, hit := s.Cache.Get(ctx, key)
	if hit {
		s.Logger.DebugContext(ctx, "species payload served from cache", slog.String("key", key))
	} else {
		source = "upstream"
		fetchStart := time.Now()
		fetched := s.Fetcher.Fetch(ctx, slug)
		observability.ObserveUpstreamFetch(string(fetched.Outcome), time.Since(fetchStart))
		switch fetched.Outcome {
		case pokeapi.OutcomeFound:
			payload = fetched.Payload
			s.Cache.Set(ctx, key, payload, s.Config.CacheTTL)
		case pokeapi.OutcomeNotFound:
			return notFound()
		default:
			return failed(fmt.Errorf("upstream fetch %q: %s", slug, fetched.Detail))
		}
	}

	fields, err := catalog.Normalize(payload)
	if err != nil {
		return failed(err)
	}
	fields.RefreshedAt = s.Clock()
	stored, err := s.Store.UpsertSpecies(ctx, fields)
	if err != nil {
		return failed(fmt.Errorf("store species: %w", err))
	}
	return succeeded(stored.Name, source)
}

// findStored looks the record up by the requested name and, when it differs,
// by the resolved upstream slug so alias spellings hit the stored record.
func (s *Service) findStored(ctx context.Context, names ...string) (catalog.Species, bool, error) {
	for i, name := range names {
		if i > 0 && name == names[0] {
			continue
		}
		record, err := s.Store.GetSpeciesByName(ctx, name)
		if err == nil {
			return record, true, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return catalog.Species{}, false, fmt.Errorf("load stored species: %w", err)
		}
	}
	return catalog.Species{}, false, nil
}

// ensureDefaults fills unset collaborators exactly once so concurrent
// batches never write the struct.
func (s *Service) ensureDefaults() {
	s.defaultsOnce.Do(func() {
		if s.Clock == nil {
			s.Clock = time.Now
		}
		if s.Cache == nil {
			s.Cache = cache.Nop{}
		}
		if s.Resolve == nil {
			s.Resolve = pokeapi.Resolve
		}
		if s.Logger == nil {
			s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	})
}
