// Package metrics provides the Prometheus surface for the dashboard
// data layer. All metrics are defined in their respective packages
// (cachestore, connectivity, fetcher, snapshot) to maintain modularity
// and avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the data layer.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the /metrics scrape
// endpoint over the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cachestore):
//   - townview_cache_hits_total{freshness} (Counter): Hits by freshness (fresh, stale)
//   - townview_cache_misses_total (Counter): Cache misses
//   - townview_cache_errors_total{operation} (Counter): Swallowed storage errors
//   - townview_cache_dropped_writes_total (Counter): Writes dropped after quota retry
//   - townview_cache_cleanups_total (Counter): Expired-entry cleanup runs
//
// Connectivity Metrics (pkg/connectivity):
//   - townview_connectivity_state{state} (Gauge): Active state indicator
//   - townview_connectivity_failures_total (Counter): Recorded failures
//   - townview_probe_failures_total (Counter): Failed health probes
//
// Fetch Metrics (pkg/fetcher):
//   - townview_fetch_requests_total{endpoint, outcome} (Counter): Calls by outcome
//     (cache_hit, fresh, stale_fallback, offline_cache, offline_no_cache, error)
//   - townview_fetch_duration_seconds{endpoint} (Histogram): Fetch duration
//
// Snapshot Metrics (pkg/snapshot):
//   - townview_snapshots_applied_total (Counter): Snapshots applied
//   - townview_snapshot_last_update_timestamp_seconds (Gauge): Last snapshot time
//   - townview_push_connected (Gauge): Push channel liveness
//   - townview_push_reconnects_total (Counter): Reconnect attempts
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(townview_cache_hits_total[5m])) /
//   (sum(rate(townview_cache_hits_total[5m])) + sum(rate(townview_cache_misses_total[5m])))
//
//   # Stale Serves (offline or error fallback)
//   rate(townview_fetch_requests_total{outcome=~"stale_fallback|offline_cache"}[5m])
//
//   # Snapshot Staleness
//   time() - townview_snapshot_last_update_timestamp_seconds
