// Package lease provides an optional advisory lock that keeps sync runs from
// overlapping across processes.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key guarding sync runs.
const DefaultKey = "recipesync:sync-lease"

var (
	// ErrNotAcquired is returned when another holder owns the lease.
	ErrNotAcquired = errors.New("lease not acquired")

	// ErrNotHeld is returned when releasing a lease that expired or was taken over.
	ErrNotHeld = errors.New("lease not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLease is a short-lived lease record in Redis. Each acquisition gets
// its own token so only the holder can release it.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLease creates a lease on key that expires after ttl if never released.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	if key == "" {
		key = DefaultKey
	}
	return &RedisLease{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease without blocking. The returned function releases it.
func (l *RedisLease) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		holder, err := l.holder(ctx)
		if err != nil || holder == "" {
			return nil, ErrNotAcquired
		}
		return nil, fmt.Errorf("%w: held by %s", ErrNotAcquired, holder)
	}

	return func(ctx context.Context) error {
		return l.release(ctx, token)
	}, nil
}

func (l *RedisLease) release(ctx context.Context, token string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// holder returns the token currently holding the lease, or "" when free.
func (l *RedisLease) holder(ctx context.Context) (string, error) {
	val, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read lease: %w", err)
	}
	return val, nil
}
