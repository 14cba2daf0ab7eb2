// Package snapshot holds the latest push-delivered full-state snapshot
// and exposes derived, stable-reference views to consumers.
package snapshot

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the live snapshot store.
var (
	snapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "townview_snapshots_applied_total",
		Help: "Total number of snapshots applied to the live store",
	})

	snapshotLastUpdate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "townview_snapshot_last_update_timestamp_seconds",
		Help: "Unix timestamp of the last applied snapshot",
	})

	pushConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "townview_push_connected",
		Help: "Whether the push channel is currently connected (1) or not (0)",
	})
)

// Store keeps the current snapshot behind a single pointer so every
// replacement is atomic: consumers never observe a mixture of two
// snapshots. Selectors return references into the current snapshot
// without copying; a reference stays stable until the snapshot is
// replaced, which keeps downstream recomputation cheap.
//
// The store has no state machine of its own. Its only implicit state
// is whether a snapshot has ever arrived: LastUpdated returning nil
// means loading. Reconnect policy lives in the Listener, not here.
type Store struct {
	mu          sync.RWMutex
	snap        *Snapshot
	lastUpdated time.Time
	connected   bool
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStore creates an empty snapshot store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		logger: logger,
		now:    time.Now,
	}
}

// SetSnapshot atomically replaces the entire snapshot and stamps
// lastUpdated, exactly once per accepted snapshot. Nil snapshots are
// rejected: partial updates are not a thing this store understands.
func (s *Store) SetSnapshot(snap *Snapshot) {
	if snap == nil {
		s.logger.Warn().Msg("Rejected nil snapshot")
		return
	}

	s.mu.Lock()
	s.snap = snap
	s.lastUpdated = s.now()
	s.mu.Unlock()

	snapshotsApplied.Inc()
	snapshotLastUpdate.Set(float64(s.lastUpdated.Unix()))
	s.logger.Debug().
		Int("rigs", len(snap.Rigs)).
		Int("activity", len(snap.Activity)).
		Msg("Snapshot applied")
}

// SetConnected updates push-channel liveness, independent of snapshot
// freshness: a connected channel may not have delivered anything yet,
// and a stale snapshot remains readable after a disconnect.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()

	if connected {
		pushConnected.Set(1)
	} else {
		pushConnected.Set(0)
	}
}

// Connected reports push-channel liveness.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// LastUpdated returns when the current snapshot arrived, or nil if no
// snapshot has ever arrived (the loading state).
func (s *Store) LastUpdated() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastUpdated.IsZero() {
		return nil
	}
	t := s.lastUpdated
	return &t
}

// Current returns the whole current snapshot, or nil while loading.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Rigs returns all rigs in the current snapshot.
func (s *Store) Rigs() []Rig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}
	return s.snap.Rigs
}

// AgentsForRig returns the agents of one rig.
func (s *Store) AgentsForRig(rigID string) []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}
	return s.snap.Agents[rigID]
}

// IssuesForRig returns the open issues of one rig.
func (s *Store) IssuesForRig(rigID string) []Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}
	return s.snap.Issues[rigID]
}

// Mail returns the operator mailbox.
func (s *Store) Mail() []MailMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}
	return s.snap.Mail
}

// Activity returns the activity feed.
func (s *Store) Activity() []ActivityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}
	return s.snap.Activity
}

// Stats returns the server-reported cache stats, or nil when the
// snapshot carries none.
func (s *Store) Stats() *CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil
	}
	return s.snap.CacheStats
}
