// Package cache stores fetched video lists between sync runs.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/emarutian/recipesync/internal/models"
)

type memoryEntry struct {
	videos    []models.VideoRecord
	expiresAt time.Time
}

// MemoryCache is a process-local video cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached videos for key if they have not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]models.VideoRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]models.VideoRecord(nil), entry.videos...), true, nil
}

// Set stores videos under key for ttl.
func (c *MemoryCache) Set(ctx context.Context, key string, videos []models.VideoRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		videos:    append([]models.VideoRecord(nil), videos...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
