package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	refreshRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsync_refresh_runs_total",
			Help: "Total number of refresh cycles by status (success, failed, skipped).",
		},
		[]string{"status"},
	)
	refreshRunLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexsync_refresh_run_latency_ms",
			Help:    "Refresh cycle latency in milliseconds.",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
		},
	)
	refreshedSpeciesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dexsync_refreshed_species_total",
			Help: "Total number of stale species re-synced by refresh cycles.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		refreshRunsTotal,
		refreshRunLatencyMs,
		refreshedSpeciesTotal,
	)
}

func observeRun(status string, elapsed time.Duration) {
	refreshRunsTotal.WithLabelValues(status).Inc()
	if status != "skipped" {
		refreshRunLatencyMs.Observe(float64(elapsed.Milliseconds()))
	}
}
