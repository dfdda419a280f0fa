// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_searches_total",
			Help: "Total number of search requests by query strategy",
		},
		[]string{"strategy"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "discovery_search_duration_seconds",
			Help: "Duration of search request processing in seconds",
		},
		[]string{"strategy"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_hits_total",
			Help: "Total number of result-cache hits by namespace",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_misses_total",
			Help: "Total number of result-cache misses by namespace",
		},
		[]string{"namespace"},
	)

	CacheFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_failures_total",
			Help: "Total number of cache operations that failed open",
		},
		[]string{"operation"},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "discovery_catalog_query_duration_seconds",
			Help: "Duration of catalog store queries in seconds",
		},
		[]string{"operation"},
	)

	TrackingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_tracking_failures_total",
			Help: "Total number of swallowed tracking failures",
		},
		[]string{"event"},
	)
)
