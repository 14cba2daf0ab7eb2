package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeremyKalmus/town-view/internal/testutil"
	"github.com/JeremyKalmus/town-view/pkg/cachestore"
	"github.com/JeremyKalmus/town-view/pkg/connectivity"
)

type fixture struct {
	backend *testutil.MockBackend
	storage *cachestore.MemoryStorage
	store   *cachestore.Store
	monitor *connectivity.Monitor
	client  *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := testutil.NewMockBackend()
	t.Cleanup(backend.Close)

	monitor := connectivity.NewMonitor(zerolog.Nop())
	storage := cachestore.NewMemoryStorage(0)
	store := cachestore.NewStore(storage, monitor, zerolog.Nop())

	client, err := New(Config{
		Store:   store,
		Monitor: monitor,
		BaseURL: backend.URL(),
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	return &fixture{
		backend: backend,
		storage: storage,
		store:   store,
		monitor: monitor,
		client:  client,
	}
}

// writeExpired plants an already-expired cache entry for a URL.
func (f *fixture) writeExpired(t *testing.T, url string, payload string) {
	t.Helper()

	entry := cachestore.NewEntry(json.RawMessage(payload), time.Now().Add(-time.Hour), time.Second)
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, f.storage.Set(context.Background(), cachestore.Key(url), raw))
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestFetch_FreshThenCacheHit(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/x", testutil.MockResponse{StatusCode: 200, Body: `{"a":1}`})

	first := f.client.Fetch(context.Background(), "/api/x", Options{CacheTTL: time.Second})
	assert.Equal(t, `{"a":1}`, string(first.Data))
	assert.False(t, first.FromCache)
	assert.Empty(t, first.Err)

	second := f.client.Fetch(context.Background(), "/api/x", Options{CacheTTL: time.Second})
	assert.Equal(t, `{"a":1}`, string(second.Data))
	assert.True(t, second.FromCache)
	assert.Empty(t, second.Err)

	assert.Equal(t, 1, f.backend.Requests("/api/x"), "cache hit must not refetch")
}

func TestFetch_SkipCacheRefetches(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/x", testutil.MockResponse{StatusCode: 200, Body: `{"a":1}`})

	f.client.Fetch(context.Background(), "/api/x", Options{})
	result := f.client.Fetch(context.Background(), "/api/x", Options{SkipCache: true})

	assert.False(t, result.FromCache)
	assert.Equal(t, 2, f.backend.Requests("/api/x"))
}

func TestFetch_OfflineServesCache(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/rigs", testutil.MockResponse{StatusCode: 200, Body: `[{"id":"r1"}]`})

	f.client.Fetch(context.Background(), "/api/rigs", Options{})
	f.monitor.SetOffline()
	f.backend.Reset()

	result := f.client.Fetch(context.Background(), "/api/rigs", Options{})

	assert.Equal(t, `[{"id":"r1"}]`, string(result.Data))
	assert.True(t, result.FromCache)
	assert.Empty(t, result.Err)
	assert.Equal(t, 0, f.backend.RequestCount, "no network I/O while offline")
}

func TestFetch_OfflineNoCache(t *testing.T) {
	f := newFixture(t)
	f.monitor.SetOffline()

	result := f.client.Fetch(context.Background(), "/api/rigs", Options{})

	assert.Nil(t, result.Data)
	assert.False(t, result.FromCache)
	assert.Equal(t, OfflineNoCacheMessage, result.Err)
	assert.True(t, result.OfflineNoCache())
	assert.Equal(t, 0, f.backend.RequestCount)
}

func TestFetch_StaleOnHTTPError(t *testing.T) {
	f := newFixture(t)
	f.writeExpired(t, "/api/rigs", `[{"id":"r1"}]`)
	f.backend.FailWith("/api/rigs", http.StatusInternalServerError)

	result := f.client.Fetch(context.Background(), "/api/rigs", Options{})

	assert.Equal(t, `[{"id":"r1"}]`, string(result.Data))
	assert.True(t, result.FromCache, "stale data must be labeled as cached")
	assert.Contains(t, result.Err, "500")
}

func TestFetch_StaleOnTransportError(t *testing.T) {
	f := newFixture(t)
	f.writeExpired(t, "/api/rigs", `[{"id":"r1"}]`)
	f.backend.Close()

	result := f.client.Fetch(context.Background(), "/api/rigs", Options{})

	assert.Equal(t, `[{"id":"r1"}]`, string(result.Data))
	assert.True(t, result.FromCache)
	assert.NotEmpty(t, result.Err)
	assert.Positive(t, f.monitor.State().FailureCount,
		"transport errors count against connectivity")
}

func TestFetch_StaleFallbackDisabled(t *testing.T) {
	f := newFixture(t)
	f.writeExpired(t, "/api/rigs", `[{"id":"r1"}]`)
	f.backend.FailWith("/api/rigs", http.StatusInternalServerError)

	result := f.client.Fetch(context.Background(), "/api/rigs", Options{DisableStaleFallback: true})

	assert.Nil(t, result.Data)
	assert.False(t, result.FromCache)
	assert.Contains(t, result.Err, "500")
}

func TestFetch_ErrorWithoutCache(t *testing.T) {
	f := newFixture(t)
	f.backend.FailWith("/api/rigs", http.StatusBadGateway)

	result := f.client.Fetch(context.Background(), "/api/rigs", Options{})

	assert.Nil(t, result.Data)
	assert.False(t, result.FromCache)
	assert.Contains(t, result.Err, "502")
}

func TestFetch_RejectsInvalidJSON(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/x", testutil.MockResponse{StatusCode: 200, Body: `not json`})

	result := f.client.Fetch(context.Background(), "/api/x", Options{})

	assert.Nil(t, result.Data)
	assert.NotEmpty(t, result.Err)
}

func TestFetch_WritesThroughToCache(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/x", testutil.MockResponse{StatusCode: 200, Body: `{"a":1}`})

	f.client.Fetch(context.Background(), "/api/x", Options{CacheTTL: time.Minute})

	cached := f.store.Get(context.Background(), "/api/x")
	assert.Equal(t, `{"a":1}`, string(cached))
}

func TestFetch_CoalescesConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/slow", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"a":1}`,
		Delay:      100 * time.Millisecond,
	})

	var wg sync.WaitGroup
	results := make([]Result[json.RawMessage], 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// SkipCache so every caller reaches the network step.
			results[i] = f.client.Fetch(context.Background(), "/api/slow", Options{SkipCache: true})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.backend.Requests("/api/slow"),
		"overlapping identical fetches must share one network call")
	for _, r := range results {
		assert.Equal(t, `{"a":1}`, string(r.Data))
		assert.Empty(t, r.Err)
	}
}

func TestJSON_DecodesPayload(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/rigs", testutil.MockResponse{StatusCode: 200, Body: `[{"id":"r1"}]`})

	type rig struct {
		ID string `json:"id"`
	}

	result := JSON[[]rig](context.Background(), f.client, "/api/rigs", Options{})

	require.Empty(t, result.Err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "r1", result.Data[0].ID)
}

func TestJSON_DecodeMismatch(t *testing.T) {
	f := newFixture(t)
	f.backend.SetResponse("/api/rigs", testutil.MockResponse{StatusCode: 200, Body: `{"a":1}`})

	result := JSON[[]string](context.Background(), f.client, "/api/rigs", Options{})

	assert.Contains(t, result.Err, "decode")
	assert.Nil(t, result.Data)
}

func TestJSON_PreservesOfflineError(t *testing.T) {
	f := newFixture(t)
	f.monitor.SetOffline()

	result := JSON[map[string]int](context.Background(), f.client, "/api/x", Options{})

	assert.True(t, result.OfflineNoCache())
}
