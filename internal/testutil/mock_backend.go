// Package testutil provides testing utilities for the dashboard data layer.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/JeremyKalmus/town-view/pkg/snapshot"
	"github.com/google/uuid"
)

// MockResponse defines the behavior for a mock backend endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockBackend is a configurable mock dashboard API server for testing.
type MockBackend struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	byPath    map[string]int

	// RequestCount is the total number of requests received.
	RequestCount int
}

// NewMockBackend creates a mock backend. Unconfigured paths return
// 200 with an empty JSON object.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		responses: make(map[string]MockResponse),
		byPath:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.byPath[r.URL.Path]++
		resp, configured := mock.responses[r.URL.Path]
		mock.mu.Unlock()

		if !configured {
			resp = MockResponse{StatusCode: http.StatusOK, Body: `{}`}
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		fmt.Fprint(w, resp.Body)
	}))

	return mock
}

// SetResponse configures the response for a path.
func (m *MockBackend) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = resp
}

// FailWith makes a path return the given status with a JSON error body.
func (m *MockBackend) FailWith(path string, status int) {
	m.SetResponse(path, MockResponse{
		StatusCode: status,
		Body:       `{"error": "injected failure"}`,
	})
}

// Requests returns how many requests a path has received.
func (m *MockBackend) Requests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPath[path]
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and configured responses.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.byPath = make(map[string]int)
	m.responses = make(map[string]MockResponse)
}

// SampleSnapshot builds a small, self-consistent snapshot fixture.
func SampleSnapshot() *snapshot.Snapshot {
	now := time.Now()
	rigID := "rig-" + uuid.NewString()[:8]

	return &snapshot.Snapshot{
		Rigs: []snapshot.Rig{
			{ID: rigID, Name: "alpha", Status: "active", UpdatedAt: now},
		},
		Agents: map[string][]snapshot.Agent{
			rigID: {
				{ID: uuid.NewString(), RigID: rigID, Name: "builder", State: "working", Task: "compile", LastActive: now},
				{ID: uuid.NewString(), RigID: rigID, Name: "reviewer", State: "idle", LastActive: now},
			},
		},
		Issues: map[string][]snapshot.Issue{
			rigID: {
				{ID: uuid.NewString(), RigID: rigID, Title: "flaky deploy", Severity: "warning", CreatedAt: now},
			},
		},
		Mail: []snapshot.MailMessage{
			{ID: uuid.NewString(), From: "ops", To: "overseer", Subject: "nightly report", SentAt: now},
		},
		Activity: []snapshot.ActivityEvent{
			{ID: uuid.NewString(), Type: "deploy", Actor: "builder", Message: "deployed alpha", Timestamp: now},
		},
		CacheStats: &snapshot.CacheStats{
			Entries: map[string]int{"rigs": 1, "mail": 1},
			Hits:    10,
			Misses:  2,
			TTLs:    map[string]int64{"rigs": 300000},
		},
	}
}
