package ingestion

import (
	"context"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emarutian/recipesync/internal/config"
	"github.com/emarutian/recipesync/internal/models"
)

// VideoSource fetches recent videos from the external catalog.
//
// Implementations return at most limit records ordered most-recent-first.
// Network or parse failures yield an empty result rather than an error so the
// orchestrator can treat an unavailable source as "nothing to do".
type VideoSource interface {
	FetchRecentVideos(ctx context.Context, limit int) []models.VideoRecord

	// Name identifies the strategy in logs and cache keys.
	Name() string
}

const (
	watchURLPrefix        = "https://www.youtube.com/watch?v="
	fallbackThumbnailHost = "https://i.ytimg.com/vi/"
	userAgent             = "recipesync/1.0 (+https://github.com/emarutian/recipesync)"
)

// NewVideoSource selects a strategy by configuration presence: the keyed API
// when both key and channel are set, the public feed when only the channel is
// set, and an empty source otherwise.
func NewVideoSource(cfg config.YouTubeConfig, client *http.Client, logger *slog.Logger) VideoSource {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	switch {
	case cfg.UsesAPI():
		logger.Info("using youtube data api video source", "channel_id", cfg.ChannelID)
		return NewAPISource(cfg.APIBaseURL, cfg.APIKey, cfg.ChannelID, client, logger)
	case cfg.ChannelID != "":
		logger.Info("using youtube feed video source", "channel_id", cfg.ChannelID)
		return NewFeedSource(cfg.FeedBaseURL, cfg.ChannelID, client, logger)
	default:
		logger.Warn("youtube channel not configured, video source disabled")
		return emptySource{}
	}
}

type emptySource struct{}

func (emptySource) FetchRecentVideos(context.Context, int) []models.VideoRecord {
	return nil
}

func (emptySource) Name() string {
	return "none"
}

// decodeText unescapes the entity-escaped snippets the Data API returns and
// trims whitespace.
func decodeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

func watchURL(videoID string) string {
	return watchURLPrefix + videoID
}

func fallbackThumbnail(videoID string) string {
	return fallbackThumbnailHost + videoID + "/hqdefault.jpg"
}

// parsePublished parses the RFC 3339 timestamps both strategies emit.
func parsePublished(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
