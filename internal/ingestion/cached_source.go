package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emarutian/recipesync/internal/models"
)

// VideoCache stores fetched video lists for a bounded interval.
type VideoCache interface {
	Get(ctx context.Context, key string) ([]models.VideoRecord, bool, error)
	Set(ctx context.Context, key string, videos []models.VideoRecord, ttl time.Duration) error
}

// CachedSource wraps a VideoSource so repeated runs within ttl reuse the
// previous fetch. Empty results are never cached, so a transient upstream
// failure does not hide new uploads for a whole interval.
type CachedSource struct {
	source VideoSource
	cache  VideoCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource decorates source with cache.
func NewCachedSource(source VideoSource, cache VideoCache, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Name returns the wrapped strategy name.
func (s *CachedSource) Name() string {
	return s.source.Name()
}

// FetchRecentVideos serves from cache when possible. Cache errors fall
// through to the wrapped source.
func (s *CachedSource) FetchRecentVideos(ctx context.Context, limit int) []models.VideoRecord {
	key := fmt.Sprintf("videos:%s:%d", s.source.Name(), limit)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("video cache read failed", "key", key, "error", err)
	} else if ok {
		s.logger.Debug("video cache hit", "key", key, "count", len(cached))
		return cached
	}

	videos := s.source.FetchRecentVideos(ctx, limit)
	if len(videos) == 0 {
		return videos
	}

	if err := s.cache.Set(ctx, key, videos, s.ttl); err != nil {
		s.logger.Warn("video cache write failed", "key", key, "error", err)
	}
	return videos
}
