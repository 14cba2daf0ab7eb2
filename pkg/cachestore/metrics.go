package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness (fresh, stale).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townview_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"freshness"}, // "fresh", "stale"
	)

	// CacheMisses tracks cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "townview_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks swallowed storage errors by operation.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townview_cache_errors_total",
			Help: "Total number of storage errors degraded to no-cache behavior",
		},
		[]string{"operation"}, // "get", "set", "delete", "metadata"
	)

	// CacheDroppedWrites tracks writes dropped after the quota retry failed.
	CacheDroppedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "townview_cache_dropped_writes_total",
			Help: "Total number of cache writes dropped after cleanup and retry",
		},
	)

	// CacheCleanups tracks expired-entry cleanup runs.
	CacheCleanups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "townview_cache_cleanups_total",
			Help: "Total number of expired-entry cleanup runs",
		},
	)
)
