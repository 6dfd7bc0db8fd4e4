package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emarutian/recipesync/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "recipesync:"

// RedisCache shares the video cache between instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Connect parses a redis:// URL and verifies the connection.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Get returns the cached videos for key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]models.VideoRecord, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var videos []models.VideoRecord
	if err := json.Unmarshal(raw, &videos); err != nil {
		return nil, false, fmt.Errorf("decode cached videos: %w", err)
	}
	return videos, true, nil
}

// Set stores videos under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, videos []models.VideoRecord, ttl time.Duration) error {
	raw, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("encode videos: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
