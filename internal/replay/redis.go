package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boostmarket/paywebhook/internal/domain"
)

const keyPrefix = "webhook:seen:"

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Seen(ctx context.Context, provider domain.Provider, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, cacheKey(provider, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Remember(ctx context.Context, provider domain.Provider, eventID string) error {
	return c.client.Set(ctx, cacheKey(provider, eventID), 1, c.ttl).Err()
}

func cacheKey(provider domain.Provider, eventID string) string {
	return keyPrefix + string(provider) + ":" + eventID
}
