// Command townviewd runs the dashboard data layer as a daemon: it
// maintains the persistent response cache, probes backend
// connectivity, listens on the push channel, and exposes the current
// snapshot plus operational endpoints over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/JeremyKalmus/town-view/pkg/cachestore"
	"github.com/JeremyKalmus/town-view/pkg/connectivity"
	"github.com/JeremyKalmus/town-view/pkg/fetcher"
	"github.com/JeremyKalmus/town-view/pkg/logging"
	"github.com/JeremyKalmus/town-view/pkg/metrics"
	"github.com/JeremyKalmus/town-view/pkg/snapshot"
)

type config struct {
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	PushURL    string `env:"PUSH_URL" envDefault:"ws://localhost:8080/ws"`
	HealthURL  string `env:"HEALTH_URL"`
	Port       string `env:"PORT" envDefault:"9090"`

	CacheBackend    string        `env:"CACHE_BACKEND" envDefault:"sqlite"`
	CachePath       string        `env:"CACHE_PATH" envDefault:"townview-cache.db"`
	CacheQuotaBytes int64         `env:"CACHE_QUOTA_BYTES" envDefault:"0"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	ProbeInterval time.Duration `env:"PROBE_INTERVAL" envDefault:"30s"`
	PrefetchURLs  []string      `env:"PREFETCH_URLS" envSeparator:"," envDefault:"/api/rigs,/api/mail,/api/activity"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(1)
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = cfg.APIBaseURL + "/health"
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("townviewd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := openStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open cache storage")
	}
	defer storage.Close()

	monitor := connectivity.NewMonitor(logging.NewLogger("connectivity"))
	store := cachestore.NewStore(storage, monitor, logging.NewLogger("cache"))

	prober := connectivity.NewProber(monitor, connectivity.ProberConfig{
		HealthURL: cfg.HealthURL,
		Interval:  cfg.ProbeInterval,
	}, logging.NewLogger("prober"))
	go prober.Run(ctx)

	client, err := fetcher.New(fetcher.Config{
		Store:   store,
		Monitor: monitor,
		BaseURL: cfg.APIBaseURL,
		Logger:  logging.NewLogger("fetcher"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetch client")
	}

	// Warm the cache so the offline policy has something to serve.
	prefetcher := fetcher.NewPrefetcher(client, fetcher.PrefetchConfig{
		CacheTTL: cfg.CacheTTL,
	}, logging.NewLogger("prefetch"))
	go prefetcher.Warm(ctx, cfg.PrefetchURLs)

	snapStore := snapshot.NewStore(logging.NewLogger("snapshot"))
	listener := snapshot.NewListener(snapStore,
		snapshot.DefaultListenerConfig(cfg.PushURL),
		logging.NewLogger("push"))
	go listener.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/snapshot", snapshotHandler(snapStore, monitor))
	mux.HandleFunc("/debug/cache/clear", clearCacheHandler(store, logger))

	server := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("api", cfg.APIBaseURL).
		Str("push", cfg.PushURL).
		Str("cache_backend", cfg.CacheBackend).
		Msg("Starting townviewd")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// openStorage selects the cache storage backend from configuration.
func openStorage(cfg config) (cachestore.Storage, error) {
	switch cfg.CacheBackend {
	case "sqlite":
		return cachestore.NewSQLiteStorage(cfg.CachePath, cfg.CacheQuotaBytes)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return cachestore.NewRedisStorage(client), nil
	case "memory":
		return cachestore.NewMemoryStorage(cfg.CacheQuotaBytes), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// snapshotHandler serves the current snapshot with freshness and
// liveness metadata.
func snapshotHandler(store *snapshot.Store, monitor *connectivity.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			Snapshot     *snapshot.Snapshot `json:"snapshot"`
			LastUpdated  *time.Time         `json:"lastUpdated"`
			Connected    bool               `json:"connected"`
			Connectivity connectivity.State `json:"connectivity"`
		}{
			Snapshot:     store.Current(),
			LastUpdated:  store.LastUpdated(),
			Connected:    store.Connected(),
			Connectivity: monitor.State(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// clearCacheHandler is the operator-facing hook to drop every cached
// entry, meant for manual invocation, not for the programmatic contract.
func clearCacheHandler(store *cachestore.Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		store.ClearAll(r.Context())
		logger.Info().Str("remote", r.RemoteAddr).Msg("Cache cleared via debug endpoint")

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "cache cleared")
	}
}
