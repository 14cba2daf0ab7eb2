package cachestore

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEntry_Expired(t *testing.T) {
	now := time.Now()
	entry := NewEntry(json.RawMessage(`{"a":1}`), now, 5*time.Second)

	if entry.Expired(now) {
		t.Error("Entry should not be expired at write time")
	}
	if entry.Expired(now.Add(3 * time.Second)) {
		t.Error("Entry should not be expired within TTL")
	}
	if !entry.Expired(now.Add(6 * time.Second)) {
		t.Error("Entry should be expired past TTL")
	}
}

func TestEntry_ExpiredAtBoundary(t *testing.T) {
	now := time.Now()
	entry := NewEntry(json.RawMessage(`1`), now, 5*time.Second)

	// Expiry is strict: now - timestamp must exceed ttl.
	if entry.Expired(now.Add(5 * time.Second)) {
		t.Error("Entry at exactly ttl should not be expired")
	}
}

func TestEntry_WireFormat(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	entry := NewEntry(json.RawMessage(`{"id":"r1"}`), now, 5*time.Minute)

	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, field := range []string{"data", "timestamp", "ttl"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("Wire format missing %q field", field)
		}
	}
	if string(decoded["timestamp"]) != "1700000000000" {
		t.Errorf("timestamp not epoch-ms: got %s", decoded["timestamp"])
	}
	if string(decoded["ttl"]) != "300000" {
		t.Errorf("ttl not milliseconds: got %s", decoded["ttl"])
	}
}

func TestEntry_WrittenAt(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	entry := NewEntry(nil, now, time.Minute)

	if !entry.WrittenAt().Equal(now) {
		t.Errorf("WrittenAt mismatch: got %v, want %v", entry.WrittenAt(), now)
	}
}
