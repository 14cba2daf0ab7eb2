// Package cachestore provides the persistent response cache for the
// dashboard data layer: namespaced key/value entries with per-entry
// TTL over a pluggable storage medium.
//
// Features:
//
// - Deterministic, reversible cache keys derived from URLs
// - Per-entry TTL with offline stale-read policy
// - Key registry metadata for bulk cleanup and "any cached data" queries
// - Quota handling: cleanup once, retry once, then drop
// - Storage failures swallowed, never propagated to callers
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	storage, err := cachestore.NewSQLiteStorage("cache.db", 0)
//	if err != nil {
//		return err
//	}
//
//	store := cachestore.NewStore(storage, monitor, logging.NewLogger("cache"))
//
//	store.Set(ctx, "/api/rigs", payload, 5*time.Minute)
//	if data := store.Get(ctx, "/api/rigs"); data != nil {
//		// cache hit
//	}
//
// # Typed Access
//
//	cachestore.Set(ctx, store, "/api/rigs", rigs, 5*time.Minute)
//	rigs, ok := cachestore.Get[[]Rig](ctx, store, "/api/rigs")
//
// # Storage Backends
//
// SQLiteStorage is the durable local default. RedisStorage suits
// deployments where several processes share one cache. MemoryStorage
// is for tests. All three honor ErrNotFound/ErrQuotaExceeded so the
// store's policy layer behaves identically over each.
//
// # Failure Semantics
//
// The store never returns errors. Corrupt entries, quota failures and
// disabled storage all degrade to "no cache" behavior, observable only
// as warn-level logs and the townview_cache_errors_total metric.
package cachestore
