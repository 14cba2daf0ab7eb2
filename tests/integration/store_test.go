package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JeremyKalmus/town-view/pkg/cachestore"
	"github.com/JeremyKalmus/town-view/pkg/connectivity"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestStoreOverRedis_FullLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	monitor := connectivity.NewMonitor(zerolog.Nop())
	store := cachestore.NewStore(cachestore.NewRedisStorage(client), monitor, zerolog.Nop())

	// Write, read back.
	store.Set(ctx, "/api/rigs", json.RawMessage(`[{"id":"r1"}]`), time.Minute)
	if got := store.Get(ctx, "/api/rigs"); string(got) != `[{"id":"r1"}]` {
		t.Fatalf("Get after Set: got %s", got)
	}
	if !store.HasAnyData(ctx) {
		t.Error("HasAnyData should be true after a write")
	}

	// The entry lands under the namespaced key in Redis itself.
	raw, err := client.Get(ctx, cachestore.Key("/api/rigs")).Bytes()
	if err != nil {
		t.Fatalf("Entry missing from Redis: %v", err)
	}
	var entry cachestore.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("Stored entry not in wire format: %v", err)
	}
	if entry.TTL != time.Minute.Milliseconds() {
		t.Errorf("Stored TTL: got %d, want %d", entry.TTL, time.Minute.Milliseconds())
	}

	// Offline policy still applies over Redis.
	monitor.SetOffline()
	if got := store.Get(ctx, "/api/rigs"); got == nil {
		t.Error("Offline read of a valid entry should hit")
	}
	monitor.SetOnline()

	// Cleanup and clear.
	if !store.CleanupExpired(ctx) {
		t.Error("CleanupExpired should report the surviving entry")
	}
	store.ClearAll(ctx)
	if store.HasAnyData(ctx) {
		t.Error("HasAnyData should be false after ClearAll")
	}
	if got := store.Get(ctx, "/api/rigs"); got != nil {
		t.Errorf("Entry survived ClearAll: %s", got)
	}
}

func TestStoreOverRedis_SharedVisibility(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	// Two stores over the same Redis see each other's writes,
	// last-write-wins with no cross-process coordination.
	first := cachestore.NewStore(cachestore.NewRedisStorage(client), nil, zerolog.Nop())
	second := cachestore.NewStore(cachestore.NewRedisStorage(client), nil, zerolog.Nop())

	first.Set(ctx, "/api/mail", json.RawMessage(`["a"]`), time.Minute)
	if got := second.Get(ctx, "/api/mail"); string(got) != `["a"]` {
		t.Errorf("Second store should read the first store's write, got %s", got)
	}

	second.Set(ctx, "/api/mail", json.RawMessage(`["b"]`), time.Minute)
	if got := first.Get(ctx, "/api/mail"); string(got) != `["b"]` {
		t.Errorf("Last write should win, got %s", got)
	}
}
