package snapshot

import (
	"context"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

var pushReconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "townview_push_reconnects_total",
	Help: "Total number of push channel reconnect attempts",
})

// ListenerConfig holds the push channel configuration.
type ListenerConfig struct {
	// URL is the websocket endpoint delivering snapshots.
	URL string

	// Origin is sent in the websocket handshake.
	Origin string

	// ReconnectInterval is the initial backoff after a disconnect.
	ReconnectInterval time.Duration

	// MaxBackoff caps the reconnect backoff.
	MaxBackoff time.Duration
}

// DefaultListenerConfig returns safe defaults for a push URL.
func DefaultListenerConfig(url string) ListenerConfig {
	return ListenerConfig{
		URL:               url,
		Origin:            "http://localhost/",
		ReconnectInterval: 1 * time.Second,
		MaxBackoff:        30 * time.Second,
	}
}

// Listener maintains the websocket push channel: it dials, decodes
// full-state snapshots into the store, flips the store's connected
// flag, and reconnects with capped exponential backoff. The store
// itself stays ignorant of all of this.
type Listener struct {
	store  *Store
	config ListenerConfig
	logger zerolog.Logger
}

// NewListener creates a listener feeding the given store.
func NewListener(store *Store, cfg ListenerConfig, logger zerolog.Logger) *Listener {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	return &Listener{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Run connects and receives snapshots until the context is cancelled.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.config.ReconnectInterval

	for {
		if err := l.connectAndReceive(ctx); err != nil {
			l.logger.Warn().Err(err).Msg("Push channel closed")
		}
		l.store.SetConnected(false)

		if ctx.Err() != nil {
			return
		}

		pushReconnects.Inc()

		// Jitter (±20%) to avoid synchronized reconnect storms.
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		l.logger.Debug().Dur("backoff", wait).Msg("Reconnecting push channel")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > l.config.MaxBackoff {
			backoff = l.config.MaxBackoff
		}
	}
}

// connectAndReceive dials the push channel and pumps snapshots into
// the store until the connection drops or the context is cancelled.
func (l *Listener) connectAndReceive(ctx context.Context) error {
	conn, err := websocket.Dial(l.config.URL, "", l.config.Origin)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock the receive loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	l.store.SetConnected(true)
	l.logger.Info().Str("url", l.config.URL).Msg("Push channel connected")

	for {
		var snap Snapshot
		if err := websocket.JSON.Receive(conn, &snap); err != nil {
			return err
		}
		l.store.SetSnapshot(&snap)
	}
}
