package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PrefetchConfig holds cache-warming configuration.
type PrefetchConfig struct {
	// MaxConcurrency is the maximum number of parallel fetches.
	MaxConcurrency int

	// CacheTTL written with each warmed entry.
	CacheTTL time.Duration

	// Timeout per endpoint fetch.
	Timeout time.Duration
}

// DefaultPrefetchConfig returns safe defaults for dashboard endpoints.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		MaxConcurrency: 4,
		CacheTTL:       DefaultCacheTTL,
		Timeout:        15 * time.Second,
	}
}

// Prefetcher warms the cache for a set of endpoints with bounded
// concurrency. Used at daemon start and after reconnecting, so the
// offline policy has something to serve.
type Prefetcher struct {
	client *Client
	config PrefetchConfig
	logger zerolog.Logger
}

// NewPrefetcher creates a prefetcher over the given orchestrator.
func NewPrefetcher(client *Client, cfg PrefetchConfig, logger zerolog.Logger) *Prefetcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Prefetcher{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// Warm fetches every URL, refreshing the cache entries. SkipCache is
// set so a warm pass always revalidates. Returns the number of
// endpoints fetched successfully.
func (p *Prefetcher) Warm(ctx context.Context, urls []string) int {
	jobs := make(chan string)
	var wg sync.WaitGroup

	var mu sync.Mutex
	warmed := 0

	for i := 0; i < p.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				fetchCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
				result := p.client.Fetch(fetchCtx, u, Options{
					CacheTTL:  p.config.CacheTTL,
					SkipCache: true,
				})
				cancel()

				if result.Err != "" {
					p.logger.Warn().
						Str("url", u).
						Str("error", result.Err).
						Msg("Prefetch failed")
					continue
				}

				mu.Lock()
				warmed++
				mu.Unlock()
			}
		}()
	}

	for _, u := range urls {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return warmed
		case jobs <- u:
		}
	}
	close(jobs)
	wg.Wait()

	p.logger.Info().
		Int("warmed", warmed).
		Int("requested", len(urls)).
		Msg("Cache warm pass finished")

	return warmed
}
