package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dexsync/dexsync/internal/catalog"
	"github.com/dexsync/dexsync/internal/ingest"
)

var testNow = time.Date(2026, time.February, 19, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	records []catalog.Species
	err     error
	cutoff  time.Time
	limit   int
}

func (s *stubStore) ListStaleSpecies(_ context.Context, cutoff time.Time, limit int) ([]catalog.Species, error) {
	s.cutoff = cutoff
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	if len(s.records) > limit {
		return s.records[:limit], nil
	}
	return s.records, nil
}

type stubIngester struct {
	mu      sync.Mutex
	batches [][]string
	block   chan struct{}
	started chan struct{}
	err     error
	panics  bool
}

func (i *stubIngester) IngestMany(_ context.Context, names []string) (ingest.BatchResult, error) {
	i.mu.Lock()
	i.batches = append(i.batches, append([]string(nil), names...))
	i.mu.Unlock()
	if i.started != nil {
		i.started <- struct{}{}
	}
	if i.block != nil {
		<-i.block
	}
	if i.panics {
		panic("boom")
	}
	return ingest.BatchResult{OK: names, NotFound: []string{}, Errors: []ingest.NameError{}}, i.err
}

func (i *stubIngester) batchCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.batches)
}

func stale(name string, refreshedAt *time.Time) catalog.Species {
	return catalog.Species{ID: "id-" + name, Name: name, RefreshedAt: refreshedAt}
}

func newTestService(store *stubStore, ingester *stubIngester) *Service {
	return &Service{
		Store:    store,
		Ingester: ingester,
		Config:   Config{Interval: time.Minute, StaleTTL: 24 * time.Hour, BatchSize: 2},
		Clock:    func() time.Time { return testNow },
	}
}

func TestRunOnceIngestsSelectedBatchInOrder(t *testing.T) {
	t1 := testNow.Add(-72 * time.Hour)
	t2 := testNow.Add(-48 * time.Hour)
	store := &stubStore{records: []catalog.Species{stale("ditto", nil), stale("abra", &t1), stale("zubat", &t2)}}
	ingester := &stubIngester{}
	svc := newTestService(store, ingester)

	summary, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !store.cutoff.Equal(testNow.Add(-24 * time.Hour)) {
		t.Fatalf("cutoff = %s", store.cutoff)
	}
	if store.limit != 2 {
		t.Fatalf("limit = %d, want 2", store.limit)
	}
	if len(ingester.batches) != 1 {
		t.Fatalf("batches = %#v", ingester.batches)
	}
	got := strings.Join(ingester.batches[0], ",")
	if got != "ditto,abra" {
		t.Fatalf("batch = %q, want ditto,abra", got)
	}
	if summary.Selected != 2 || summary.OK != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunOnceEmptySelectionIsNoop(t *testing.T) {
	ingester := &stubIngester{}
	svc := newTestService(&stubStore{}, ingester)

	summary, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if summary.Selected != 0 || ingester.batchCount() != 0 {
		t.Fatalf("summary = %+v, batches = %d", summary, ingester.batchCount())
	}
}

func TestRunOnceSkipsWhileCycleInFlight(t *testing.T) {
	store := &stubStore{records: []catalog.Species{stale("ditto", nil)}}
	ingester := &stubIngester{block: make(chan struct{}), started: make(chan struct{}, 1)}
	svc := newTestService(store, ingester)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunOnce(context.Background())
		done <- err
	}()
	<-ingester.started

	if !svc.Running() {
		t.Fatal("Running() = false while cycle in flight")
	}
	if _, err := svc.RunOnce(context.Background()); !errors.Is(err, ErrRunInFlight) {
		t.Fatalf("RunOnce() error = %v, want ErrRunInFlight", err)
	}

	close(ingester.block)
	if err := <-done; err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if svc.Running() {
		t.Fatal("Running() = true after cycle finished")
	}
	if ingester.batchCount() != 1 {
		t.Fatalf("batches = %d, want 1", ingester.batchCount())
	}
}

func TestRunOnceRecoversFromPanics(t *testing.T) {
	store := &stubStore{records: []catalog.Species{stale("ditto", nil)}}
	svc := newTestService(store, &stubIngester{panics: true})

	if _, err := svc.RunOnce(context.Background()); err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("RunOnce() error = %v, want panic error", err)
	}
	if svc.Running() {
		t.Fatal("guard not released after panic")
	}
}

func TestRunOnceReportsStoreAndIngestErrors(t *testing.T) {
	svc := newTestService(&stubStore{err: errors.New("db down")}, &stubIngester{})
	if _, err := svc.RunOnce(context.Background()); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("RunOnce() error = %v", err)
	}

	store := &stubStore{records: []catalog.Species{stale("ditto", nil)}}
	svc = newTestService(store, &stubIngester{err: ingest.ErrFlush})
	summary, err := svc.RunOnce(context.Background())
	if !errors.Is(err, ingest.ErrFlush) {
		t.Fatalf("RunOnce() error = %v, want ErrFlush", err)
	}
	if summary.OK != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunTicksUntilContextCancelled(t *testing.T) {
	store := &stubStore{records: []catalog.Species{stale("ditto", nil)}}
	ingester := &stubIngester{started: make(chan struct{}, 16)}
	svc := newTestService(store, ingester)
	svc.Config.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-ingester.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh cycle ran")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	svc := newTestService(&stubStore{}, &stubIngester{})
	svc.Config.Interval = 0
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for zero interval")
	}
}

func TestRunOnceConcurrentCallsShareDefaults(t *testing.T) {
	store := &stubStore{records: []catalog.Species{stale("ditto", nil)}}
	svc := &Service{Store: store, Ingester: &stubIngester{}}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RunOnce(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrRunInFlight) {
			t.Fatalf("RunOnce() error = %v", err)
		}
	}
	if svc.Clock == nil || svc.Config.BatchSize != 50 || svc.Config.StaleTTL != 24*time.Hour {
		t.Fatalf("defaults not applied: batch=%d ttl=%s", svc.Config.BatchSize, svc.Config.StaleTTL)
	}
}
