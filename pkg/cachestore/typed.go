package cachestore

import (
	"context"
	"encoding/json"
	"time"
)

// Get retrieves and decodes the cached value for a URL. Returns the
// zero value and false on a miss or when the stored payload does not
// decode into T.
func Get[T any](ctx context.Context, s *Store, url string) (T, bool) {
	var value T

	data := s.Get(ctx, url)
	if data == nil {
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return value, false
	}
	return value, true
}

// Set encodes and caches a value for a URL. Values that fail to
// marshal are dropped with a warning, like any other storage failure.
func Set[T any](ctx context.Context, s *Store, url string, value T, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("Value not serializable")
		return
	}
	s.Set(ctx, url, data, ttl)
}
