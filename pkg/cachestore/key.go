package cachestore

import (
	"net/url"
	"strings"
)

const (
	// KeyPrefix namespaces all cache entries in the underlying storage.
	KeyPrefix = "townview:cache:"

	// MetadataKey is the single well-known key holding the key registry.
	MetadataKey = "townview:cache:meta"
)

// Key derives the storage key for a URL.
// The encoding is deterministic and reversible: the same URL always maps
// to the same key, and distinct URLs never collide.
func Key(rawURL string) string {
	return KeyPrefix + url.QueryEscape(rawURL)
}

// URLFromKey recovers the original URL from a storage key.
// Returns false for keys outside the cache namespace or for the
// metadata key.
func URLFromKey(key string) (string, bool) {
	if key == MetadataKey || !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	raw, err := url.QueryUnescape(strings.TrimPrefix(key, KeyPrefix))
	if err != nil {
		return "", false
	}
	return raw, true
}
