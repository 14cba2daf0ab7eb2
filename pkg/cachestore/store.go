package cachestore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnectivitySource reports whether the process currently considers
// itself offline. The cache store uses it for the stale-read policy:
// expired entries are still served while offline.
type ConnectivitySource interface {
	Offline() bool
}

// Metadata is the registry of live cache keys, stored under
// MetadataKey as {"keys": [...], "lastCleanup": <epoch-ms>}.
// The key set may transiently over-approximate the entries actually
// present (a dropped write can leave a dangling key), but it never
// under-approximates: cleanup removes keys and entries together.
type Metadata struct {
	Keys        []string `json:"keys"`
	LastCleanup int64    `json:"lastCleanup"`
}

// Store is the persistent cache: namespaced key/value entries with
// per-entry TTL on top of a Storage medium.
//
// Every operation swallows storage failures and degrades to "no cache"
// behavior. The cache is a performance and availability optimization,
// never a correctness dependency, so a corrupted entry, a full disk or
// a disabled medium must not crash the caller.
type Store struct {
	storage Storage
	conn    ConnectivitySource
	logger  zerolog.Logger
	now     func() time.Time

	// mu serializes metadata read-modify-write cycles so the key
	// registry never under-approximates the stored entries.
	mu sync.Mutex
}

// NewStore creates a cache store over the given storage medium.
// conn may be nil, in which case the store always applies the online
// read policy.
func NewStore(storage Storage, conn ConnectivitySource, logger zerolog.Logger) *Store {
	if storage == nil {
		panic("storage cannot be nil")
	}
	return &Store{
		storage: storage,
		conn:    conn,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached payload for a URL, or nil when there is no
// usable entry: absent, unparsable, or expired while online. An
// expired entry is still returned while offline, trading freshness for
// availability.
func (s *Store) Get(ctx context.Context, url string) json.RawMessage {
	key := Key(url)

	raw, err := s.storage.Get(ctx, key)
	if err != nil {
		if err != ErrNotFound {
			CacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("url", url).Msg("Cache read failed")
		}
		CacheMisses.Inc()
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		CacheMisses.Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("Corrupt cache entry")
		return nil
	}

	if entry.Expired(s.now()) {
		if s.offline() {
			CacheHits.WithLabelValues("stale").Inc()
			s.logger.Debug().Str("url", url).Msg("Serving expired entry while offline")
			return entry.Data
		}
		CacheMisses.Inc()
		return nil
	}

	CacheHits.WithLabelValues("fresh").Inc()
	return entry.Data
}

// GetStale returns the cached payload for a URL regardless of expiry.
// This is the error-fallback read: when a live fetch fails, an expired
// entry is still better than nothing. Returns nil only when the entry
// is absent or unparsable.
func (s *Store) GetStale(ctx context.Context, url string) json.RawMessage {
	raw, err := s.storage.Get(ctx, Key(url))
	if err != nil {
		if err != ErrNotFound {
			CacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("url", url).Msg("Cache read failed")
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil
	}

	if entry.Expired(s.now()) {
		CacheHits.WithLabelValues("stale").Inc()
	} else {
		CacheHits.WithLabelValues("fresh").Inc()
	}
	return entry.Data
}

// Set writes a timestamped entry for a URL and registers its key in
// the metadata registry. On a quota failure it runs one expired-entry
// cleanup and retries the write exactly once; if the retry also fails
// the write is dropped with a warning.
func (s *Store) Set(ctx context.Context, url string, data json.RawMessage, ttl time.Duration) {
	key := Key(url)
	entry := NewEntry(data, s.now(), ttl)

	raw, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("Cache entry not serializable")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(ctx, key, raw); err != nil {
		if err != ErrQuotaExceeded {
			CacheErrors.WithLabelValues("set").Inc()
			s.logger.Warn().Err(err).Str("url", url).Msg("Cache write failed")
			return
		}

		// Quota: cleanup once, retry once, otherwise drop.
		s.cleanupLocked(ctx)
		if err := s.storage.Set(ctx, key, raw); err != nil {
			CacheDroppedWrites.Inc()
			s.logger.Warn().Err(err).Str("url", url).Msg("Cache write dropped after cleanup retry")
			return
		}
	}

	s.registerKeyLocked(ctx, key)
	s.logger.Debug().Str("url", url).Dur("ttl", ttl).Msg("Cached entry")
}

// Remove deletes the entry for a URL and unregisters its key.
func (s *Store) Remove(ctx context.Context, url string) {
	key := Key(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("Cache delete failed")
	}

	meta := s.loadMetadataLocked(ctx)
	kept := meta.Keys[:0]
	for _, k := range meta.Keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	meta.Keys = kept
	s.saveMetadataLocked(ctx, meta)
}

// ClearAll deletes every tracked entry and the metadata itself.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := s.loadMetadataLocked(ctx)
	for _, key := range meta.Keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
		}
	}
	if err := s.storage.Delete(ctx, MetadataKey); err != nil {
		CacheErrors.WithLabelValues("metadata").Inc()
	}

	s.logger.Info().Int("entries", len(meta.Keys)).Msg("Cleared cache")
}

// CleanupExpired drops every expired or unparsable entry, rewrites the
// metadata to the surviving key set and reports whether any valid
// entries remain.
func (s *Store) CleanupExpired(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(ctx)
}

// Timestamp returns the write time of the entry for a URL without
// applying TTL logic, for "data as of" displays.
func (s *Store) Timestamp(ctx context.Context, url string) (time.Time, bool) {
	raw, err := s.storage.Get(ctx, Key(url))
	if err != nil {
		return time.Time{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return time.Time{}, false
	}
	return entry.WrittenAt(), true
}

// HasAnyData reports whether any entries are registered. It consults
// only the metadata registry, so it may briefly report true for keys
// whose entries were dropped; cleanup reconciles the registry.
func (s *Store) HasAnyData(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loadMetadataLocked(ctx).Keys) > 0
}

func (s *Store) offline() bool {
	return s.conn != nil && s.conn.Offline()
}

func (s *Store) cleanupLocked(ctx context.Context) bool {
	CacheCleanups.Inc()
	now := s.now()
	meta := s.loadMetadataLocked(ctx)

	surviving := make([]string, 0, len(meta.Keys))
	dropped := 0
	for _, key := range meta.Keys {
		raw, err := s.storage.Get(ctx, key)
		if err != nil {
			dropped++
			continue
		}

		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Expired(now) {
			if err := s.storage.Delete(ctx, key); err != nil {
				CacheErrors.WithLabelValues("delete").Inc()
			}
			dropped++
			continue
		}

		surviving = append(surviving, key)
	}

	meta.Keys = surviving
	meta.LastCleanup = now.UnixMilli()
	s.saveMetadataLocked(ctx, meta)

	s.logger.Debug().
		Int("surviving", len(surviving)).
		Int("dropped", dropped).
		Msg("Cache cleanup finished")

	return len(surviving) > 0
}

func (s *Store) registerKeyLocked(ctx context.Context, key string) {
	meta := s.loadMetadataLocked(ctx)
	for _, k := range meta.Keys {
		if k == key {
			return
		}
	}
	meta.Keys = append(meta.Keys, key)
	s.saveMetadataLocked(ctx, meta)
}

// loadMetadataLocked returns the key registry, or an empty one when
// absent or corrupt. Metadata is created lazily on first write.
func (s *Store) loadMetadataLocked(ctx context.Context) Metadata {
	var meta Metadata

	raw, err := s.storage.Get(ctx, MetadataKey)
	if err != nil {
		if err != ErrNotFound {
			CacheErrors.WithLabelValues("metadata").Inc()
			s.logger.Warn().Err(err).Msg("Cache metadata read failed")
		}
		return meta
	}

	if err := json.Unmarshal(raw, &meta); err != nil {
		CacheErrors.WithLabelValues("metadata").Inc()
		s.logger.Warn().Err(err).Msg("Corrupt cache metadata")
		return Metadata{}
	}
	return meta
}

func (s *Store) saveMetadataLocked(ctx context.Context, meta Metadata) {
	raw, err := json.Marshal(meta)
	if err != nil {
		CacheErrors.WithLabelValues("metadata").Inc()
		return
	}
	if err := s.storage.Set(ctx, MetadataKey, raw); err != nil {
		CacheErrors.WithLabelValues("metadata").Inc()
		s.logger.Warn().Err(err).Msg("Cache metadata write failed")
	}
}
