package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"route-editor/internal/models"
)

const redisKeyPrefix = "route:"

// RedisCache is a Cache backed by redis with a fixed TTL per entry
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection
func NewRedisCache(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.RouteCacheEntry, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read route cache entry: %w", err)
	}

	var entry models.RouteCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode route cache entry: %w", err)
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode route cache entry: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+entry.Key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write route cache entry: %w", err)
	}
	return nil
}

// Close closes the redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
