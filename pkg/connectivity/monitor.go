// Package connectivity tracks whether the backend is reachable and
// gates the cache read/write policy on that status.
package connectivity

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for connectivity tracking.
var (
	connectivityState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "townview_connectivity_state",
		Help: "Current connectivity state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	connectivityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "townview_connectivity_failures_total",
		Help: "Total number of recorded connectivity failures",
	})
)

// Status is the connectivity state of the process.
type Status string

const (
	// StatusOnline is the initial state: the backend is reachable.
	StatusOnline Status = "online"

	// StatusOffline means the backend is considered unreachable.
	StatusOffline Status = "offline"

	// StatusReconnecting means a reconnection attempt is in progress.
	StatusReconnecting Status = "reconnecting"
)

// State is a point-in-time snapshot of the monitor.
type State struct {
	Status Status `json:"status"`

	// LastOnline is the last time the monitor transitioned to online.
	// Nil if the process has never been online.
	LastOnline *time.Time `json:"lastOnline"`

	// FailureCount is the number of failures recorded since the last
	// transition to online.
	FailureCount int `json:"failureCount"`
}

// Monitor holds the connectivity state machine. Transitions are driven
// externally (by the Prober or by fetch outcomes); the monitor itself
// only exposes state and timestamps. No transition is irreversible:
// any state can move to any other.
type Monitor struct {
	mu           sync.RWMutex
	status       Status
	lastOnline   time.Time
	failureCount int
	logger       zerolog.Logger
	now          func() time.Time
}

// NewMonitor creates a monitor in the online state.
func NewMonitor(logger zerolog.Logger) *Monitor {
	m := &Monitor{
		status: StatusOnline,
		logger: logger,
		now:    time.Now,
	}
	m.publishState(StatusOnline)
	return m
}

// SetOnline transitions to online. This is the only transition that
// clears the failure count; it also stamps lastOnline.
func (m *Monitor) SetOnline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusOnline {
		m.logger.Info().
			Str("previous", string(m.status)).
			Int("failure_count", m.failureCount).
			Msg("Connectivity restored")
	}

	m.status = StatusOnline
	m.failureCount = 0
	m.lastOnline = m.now()
	m.publishState(StatusOnline)
}

// SetOffline transitions to offline.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusOffline {
		m.logger.Warn().
			Int("failure_count", m.failureCount).
			Msg("Connectivity lost")
	}

	m.status = StatusOffline
	m.publishState(StatusOffline)
}

// SetReconnecting transitions to reconnecting.
func (m *Monitor) SetReconnecting() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = StatusReconnecting
	m.publishState(StatusReconnecting)
}

// RecordFailure increments the failure count and returns the new
// value. Valid in any state; only SetOnline resets the count.
func (m *Monitor) RecordFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	connectivityFailures.Inc()
	return m.failureCount
}

// Status returns the current connectivity status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Offline reports whether the monitor is in the offline state.
// Satisfies cachestore.ConnectivitySource.
func (m *Monitor) Offline() bool {
	return m.Status() == StatusOffline
}

// State returns a snapshot of the monitor.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := State{
		Status:       m.status,
		FailureCount: m.failureCount,
	}
	if !m.lastOnline.IsZero() {
		t := m.lastOnline
		state.LastOnline = &t
	}
	return state
}

// publishState updates the state gauge. Caller must hold mu.
func (m *Monitor) publishState(active Status) {
	for _, s := range []Status{StatusOnline, StatusOffline, StatusReconnecting} {
		value := 0.0
		if s == active {
			value = 1.0
		}
		connectivityState.WithLabelValues(string(s)).Set(value)
	}
}
