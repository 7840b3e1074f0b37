package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/boostmarket/paywebhook/internal/domain"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return "redis://" + endpoint
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, setupRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCache(client, time.Minute)

	seen, err := cache.Seen(ctx, domain.ProviderMoMo, "BK1:1:0")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.Remember(ctx, domain.ProviderMoMo, "BK1:1:0"))

	seen, err = cache.Seen(ctx, domain.ProviderMoMo, "BK1:1:0")
	require.NoError(t, err)
	assert.True(t, seen)

	// Keys are scoped by provider.
	seen, err = cache.Seen(ctx, domain.ProviderVNPay, "BK1:1:0")
	require.NoError(t, err)
	assert.False(t, seen)

	ttl, err := client.TTL(ctx, cacheKey(domain.ProviderMoMo, "BK1:1:0")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

func TestGuard_WithRedisCacheShortCircuitsStore(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, setupRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	events := &fakeEvents{}
	g := NewGuard(events, WithCache(NewRedisCache(client, time.Minute)))

	g.MarkCompleted(ctx, domain.ProviderZaloPay, "261016_BK1:9:1")
	res := g.Validate(ctx, domain.ProviderZaloPay, "261016_BK1:9:1", time.Now())

	assert.True(t, res.IsDuplicate)
	assert.Zero(t, events.calls)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	require.Error(t, err)
}
