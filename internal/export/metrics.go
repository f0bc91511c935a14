package export

import "github.com/prometheus/client_golang/prometheus"

var (
	exportRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsync_export_runs_total",
			Help: "Total number of species export runs by status.",
		},
		[]string{"status"},
	)
	exportBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dexsync_export_bytes_total",
			Help: "Total parquet bytes uploaded by species exports.",
		},
	)
)

func init() {
	prometheus.MustRegister(exportRunsTotal, exportBytesTotal)
}
