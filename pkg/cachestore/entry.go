package cachestore

import (
	"encoding/json"
	"time"
)

// Entry is a single cached payload with its write time and lifetime.
// The JSON shape is the on-disk wire format and must stay stable:
// {"data": <opaque>, "timestamp": <epoch-ms>, "ttl": <ms>}.
type Entry struct {
	// Data is the cached payload, stored as raw JSON.
	Data json.RawMessage `json:"data"`

	// Timestamp is the write time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	// TTL is the entry lifetime in milliseconds.
	TTL int64 `json:"ttl"`
}

// NewEntry creates an entry timestamped at now.
func NewEntry(data json.RawMessage, now time.Time, ttl time.Duration) Entry {
	return Entry{
		Data:      data,
		Timestamp: now.UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
}

// Expired returns true if the entry is past its TTL at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp > e.TTL
}

// WrittenAt returns the entry's write time.
func (e *Entry) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}
