package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ingestBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dexsync_ingest_batches_total",
			Help: "Total number of ingestion batches.",
		},
	)
	ingestNamesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsync_ingest_names_total",
			Help: "Total number of requested names by outcome (ok, not_found, error).",
		},
		[]string{"outcome"},
	)
	ingestSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsync_ingest_source_total",
			Help: "Where successful names were served from (store, cache, upstream).",
		},
		[]string{"source"},
	)
	ingestBatchLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexsync_ingest_batch_latency_ms",
			Help:    "Ingestion batch latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)
	upstreamFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsync_upstream_fetch_total",
			Help: "Total number of upstream fetches by outcome.",
		},
		[]string{"outcome"},
	)
	upstreamFetchLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexsync_upstream_fetch_latency_ms",
			Help:    "Upstream fetch latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
	)
	storedSpecies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dexsync_stored_species",
			Help: "Number of species records in the last full listing.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ingestBatchesTotal,
		ingestNamesTotal,
		ingestSourceTotal,
		ingestBatchLatencyMs,
		upstreamFetchTotal,
		upstreamFetchLatencyMs,
		storedSpecies,
	)
}

func ObserveIngestBatch(ok, notFound, failed int, elapsed time.Duration) {
	ingestBatchesTotal.Inc()
	if ok > 0 {
		ingestNamesTotal.WithLabelValues("ok").Add(float64(ok))
	}
	if notFound > 0 {
		ingestNamesTotal.WithLabelValues("not_found").Add(float64(notFound))
	}
	if failed > 0 {
		ingestNamesTotal.WithLabelValues("error").Add(float64(failed))
	}
	ingestBatchLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveIngestSource(source string) {
	ingestSourceTotal.WithLabelValues(source).Inc()
}

func ObserveUpstreamFetch(outcome string, elapsed time.Duration) {
	upstreamFetchTotal.WithLabelValues(outcome).Inc()
	upstreamFetchLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func SetStoredSpecies(count int) {
	if count < 0 {
		count = 0
	}
	storedSpecies.Set(float64(count))
}
