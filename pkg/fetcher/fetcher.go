// Package fetcher provides the cached-fetch orchestrator: per request
// it decides whether to serve from cache, fetch fresh, or fall back to
// stale cache on error, and keeps the cache updated.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JeremyKalmus/town-view/pkg/cachestore"
	"github.com/JeremyKalmus/town-view/pkg/connectivity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for fetch orchestration.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "townview_fetch_requests_total",
		Help: "Total cached-fetch calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "townview_fetch_duration_seconds",
		Help:    "Cached-fetch duration in seconds by endpoint",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Fetch outcomes recorded in townview_fetch_requests_total.
const (
	outcomeCacheHit       = "cache_hit"
	outcomeFresh          = "fresh"
	outcomeStaleFallback  = "stale_fallback"
	outcomeOfflineCache   = "offline_cache"
	outcomeOfflineNoCache = "offline_no_cache"
	outcomeError          = "error"
)

// DefaultCacheTTL is used when Options.CacheTTL is zero.
const DefaultCacheTTL = 5 * time.Minute

// OfflineNoCacheMessage is the error string for the distinguishable
// "offline and nothing cached" condition, so UIs can render a dedicated
// offline state instead of a generic error.
const OfflineNoCacheMessage = "offline and no cached data available"

// Options controls a single cached fetch. The zero value applies the
// defaults: 5 minute TTL, cache hits short-circuit, stale fallback on.
type Options struct {
	// CacheTTL is the lifetime written with a fresh response.
	CacheTTL time.Duration

	// SkipCache bypasses the cache-hit short-circuit. Callers that
	// need guaranteed freshness set this; the response is still
	// written through to the cache.
	SkipCache bool

	// DisableStaleFallback turns off serving expired cache entries
	// when the live fetch fails.
	DisableStaleFallback bool
}

// Result is the uniform outcome of a cached fetch. The orchestrator
// never returns a Go error across this boundary: failures arrive as a
// message in Err so presentation layers can render degraded states
// without crash paths. Stale data is always labeled: FromCache true
// plus a non-empty Err means the data is a fallback, not live.
type Result[T any] struct {
	Data      T
	FromCache bool
	Err       string
}

// OfflineNoCache reports whether the result is the specific
// offline-with-no-cache condition.
func (r Result[T]) OfflineNoCache() bool {
	return r.Err == OfflineNoCacheMessage
}

// Config holds the orchestrator configuration.
type Config struct {
	// Store is the persistent cache (required).
	Store *cachestore.Store

	// Monitor gates the offline policy. Optional; without it every
	// request takes the online path.
	Monitor *connectivity.Monitor

	// BaseURL is prefixed to relative request URLs.
	BaseURL string

	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// Client orchestrates cached fetches.
type Client struct {
	store      *cachestore.Store
	monitor    *connectivity.Monitor
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	// flights coalesces concurrent fetches for the same cache key so
	// overlapping callers share one network call and one cache write.
	flights singleflight.Group
}

// New creates a fetch orchestrator.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		store:      cfg.Store,
		monitor:    cfg.Monitor,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

// Fetch performs a cached fetch for a URL and returns the raw JSON
// payload. The sequence per call is strictly read-cache, fetch,
// write-cache:
//
//  1. Offline: serve the cache (stale included) or report
//     OfflineNoCacheMessage. No network I/O happens while offline.
//  2. Online cache hit: short-circuit unless SkipCache. A hit always
//     wins over a fresh fetch; there is no background revalidation, so
//     callers needing eventual freshness rely on short TTLs or the
//     push channel.
//  3. Fetch, then either write through on success or fall back to a
//     stale entry on failure.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) Result[json.RawMessage] {
	endpoint := endpointLabel(rawURL)
	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	// Step 1: offline policy. Availability beats freshness.
	if c.monitor != nil && c.monitor.Offline() {
		if data := c.store.Get(ctx, rawURL); data != nil {
			fetchRequestsTotal.WithLabelValues(endpoint, outcomeOfflineCache).Inc()
			c.logger.Debug().Str("url", rawURL).Msg("Offline, serving cache")
			return Result[json.RawMessage]{Data: data, FromCache: true}
		}

		fetchRequestsTotal.WithLabelValues(endpoint, outcomeOfflineNoCache).Inc()
		c.logger.Error().Str("url", rawURL).Msg("Offline with no cached data")
		return Result[json.RawMessage]{Err: OfflineNoCacheMessage}
	}

	// Step 2: cache-hit short-circuit.
	if !opts.SkipCache {
		if data := c.store.Get(ctx, rawURL); data != nil {
			fetchRequestsTotal.WithLabelValues(endpoint, outcomeCacheHit).Inc()
			c.logger.Debug().Str("url", rawURL).Msg("Cache hit")
			return Result[json.RawMessage]{Data: data, FromCache: true}
		}
	}

	// Step 3: network fetch, coalesced per cache key.
	key := cachestore.Key(rawURL)
	value, err, _ := c.flights.Do(key, func() (interface{}, error) {
		return c.fetchAndStore(ctx, rawURL, ttl)
	})

	if err != nil {
		if !opts.DisableStaleFallback {
			if stale := c.store.GetStale(ctx, rawURL); stale != nil {
				fetchRequestsTotal.WithLabelValues(endpoint, outcomeStaleFallback).Inc()
				c.logger.Warn().
					Err(err).
					Str("url", rawURL).
					Msg("Fetch failed, serving stale cache")
				return Result[json.RawMessage]{Data: stale, FromCache: true, Err: err.Error()}
			}
		}

		fetchRequestsTotal.WithLabelValues(endpoint, outcomeError).Inc()
		return Result[json.RawMessage]{Err: err.Error()}
	}

	fetchRequestsTotal.WithLabelValues(endpoint, outcomeFresh).Inc()
	return Result[json.RawMessage]{Data: value.(json.RawMessage)}
}

// fetchAndStore performs the network call and writes the response
// through to the cache. Runs at most once per cache key at a time.
func (c *Client) fetchAndStore(ctx context.Context, rawURL string, ttl time.Duration) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.monitor != nil {
			c.monitor.RecordFailure()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	c.store.Set(ctx, rawURL, body, ttl)
	return json.RawMessage(body), nil
}

// JSON performs a cached fetch and decodes the payload into T. The
// serialization boundary is explicit: T must be JSON-decodable, and a
// payload that does not decode surfaces as an error string on the
// result, never as a panic or Go error.
func JSON[T any](ctx context.Context, c *Client, rawURL string, opts Options) Result[T] {
	raw := c.Fetch(ctx, rawURL, opts)

	out := Result[T]{FromCache: raw.FromCache, Err: raw.Err}
	if raw.Data == nil {
		return out
	}

	if err := json.Unmarshal(raw.Data, &out.Data); err != nil {
		var zero T
		out.Data = zero
		out.FromCache = false
		out.Err = fmt.Sprintf("decode response: %v", err)
	}
	return out
}

// endpointLabel reduces a URL to its path for metric labels, keeping
// cardinality bounded.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "invalid"
	}
	return u.Path
}
