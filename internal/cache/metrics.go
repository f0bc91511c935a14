package cache

import "github.com/prometheus/client_golang/prometheus"

var cacheLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexsync_cache_lookups_total",
		Help: "Total number of freshness cache lookups by result.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(cacheLookupsTotal)
}
