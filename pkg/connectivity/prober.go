package connectivity

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var probeFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "townview_probe_failures_total",
	Help: "Total number of failed health probes",
})

// ProberConfig holds the health-probe configuration.
type ProberConfig struct {
	// HealthURL is the endpoint probed for reachability.
	HealthURL string

	// Interval between probes while online.
	Interval time.Duration

	// ReconnectInterval is the initial delay between probes while
	// offline. It grows exponentially up to Interval.
	ReconnectInterval time.Duration

	// OfflineThreshold is the number of consecutive probe failures
	// before the monitor is marked offline.
	OfflineThreshold int

	// Timeout per probe request.
	Timeout time.Duration
}

// DefaultProberConfig returns a safe default configuration.
func DefaultProberConfig(healthURL string) ProberConfig {
	return ProberConfig{
		HealthURL:         healthURL,
		Interval:          30 * time.Second,
		ReconnectInterval: 5 * time.Second,
		OfflineThreshold:  3,
		Timeout:           5 * time.Second,
	}
}

// Prober periodically probes a health endpoint and drives the monitor:
// a successful probe marks the monitor online, consecutive failures
// past the threshold mark it offline, and while offline each attempt
// is announced as reconnecting.
type Prober struct {
	monitor    *Monitor
	httpClient *http.Client
	config     ProberConfig
	logger     zerolog.Logger
}

// NewProber creates a prober for the given monitor.
func NewProber(monitor *Monitor, cfg ProberConfig, logger zerolog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.OfflineThreshold <= 0 {
		cfg.OfflineThreshold = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Prober{
		monitor:    monitor,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}
}

// Run probes until the context is cancelled. While online it probes at
// the configured interval; after going offline it retries with
// exponential backoff and jitter, capped at the online interval.
func (p *Prober) Run(ctx context.Context) {
	backoff := p.config.ReconnectInterval

	for {
		wasOffline := p.monitor.Offline()
		if wasOffline {
			p.monitor.SetReconnecting()
		}

		err := p.probe(ctx)
		if err == nil {
			p.monitor.SetOnline()
			backoff = p.config.ReconnectInterval
		} else {
			probeFailures.Inc()
			count := p.monitor.RecordFailure()
			p.logger.Debug().
				Err(err).
				Int("failure_count", count).
				Msg("Health probe failed")

			if wasOffline || count >= p.config.OfflineThreshold {
				p.monitor.SetOffline()
			}
		}

		wait := p.config.Interval
		if p.monitor.Offline() {
			// Jitter (±20%) keeps probes from aligning across processes.
			wait = time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
			backoff *= 2
			if backoff > p.config.Interval {
				backoff = p.config.Interval
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// probe performs a single health check.
func (p *Prober) probe(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.config.HealthURL, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}
