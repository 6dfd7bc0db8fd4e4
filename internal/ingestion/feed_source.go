package ingestion

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/emarutian/recipesync/internal/models"
)

const (
	youtubeNamespace = "http://www.youtube.com/xml/schemas/2015"
	mediaNamespace   = "http://search.yahoo.com/mrss/"

	maxFeedBytes = 5 << 20
)

// FeedSource reads a channel's public Atom feed. The feed carries a small
// fixed window of recent uploads and has no pagination.
type FeedSource struct {
	baseURL   string
	channelID string
	client    *http.Client
	logger    *slog.Logger
}

// NewFeedSource creates an unauthenticated feed video source.
func NewFeedSource(baseURL, channelID string, client *http.Client, logger *slog.Logger) *FeedSource {
	return &FeedSource{
		baseURL:   baseURL,
		channelID: channelID,
		client:    client,
		logger:    logger,
	}
}

// Name returns the strategy name.
func (s *FeedSource) Name() string {
	return "youtube-feed:" + s.channelID
}

type videoFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []videoEntry `xml:"entry"`
}

type videoEntry struct {
	VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Link      struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Group struct {
		Description string `xml:"http://search.yahoo.com/mrss/ description"`
		Thumbnail   struct {
			URL string `xml:"url,attr"`
		} `xml:"http://search.yahoo.com/mrss/ thumbnail"`
	} `xml:"http://search.yahoo.com/mrss/ group"`
}

// FetchRecentVideos fetches and parses the feed.
func (s *FeedSource) FetchRecentVideos(ctx context.Context, limit int) []models.VideoRecord {
	if limit <= 0 {
		return nil
	}

	body, err := s.fetchFeed(ctx)
	if err != nil {
		s.logger.Error("failed to fetch youtube feed", "channel_id", s.channelID, "error", err)
		return nil
	}

	videos, err := parseVideoFeed(body)
	if err != nil {
		s.logger.Error("failed to parse youtube feed", "channel_id", s.channelID, "error", err)
		return nil
	}

	if len(videos) > limit {
		videos = videos[:limit]
	}

	s.logger.Debug("fetched videos from youtube feed", "channel_id", s.channelID, "count", len(videos))
	return videos
}

func (s *FeedSource) fetchFeed(ctx context.Context) ([]byte, error) {
	feedURL := s.baseURL + "?channel_id=" + url.QueryEscape(s.channelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return body, nil
}

// parseVideoFeed extracts video records from an Atom document, newest first.
func parseVideoFeed(body []byte) ([]models.VideoRecord, error) {
	var feed videoFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("unmarshal atom: %w", err)
	}

	videos := make([]models.VideoRecord, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		videoID := strings.TrimSpace(entry.VideoID)
		if videoID == "" {
			continue
		}

		thumb := strings.TrimSpace(entry.Group.Thumbnail.URL)
		if thumb == "" {
			thumb = fallbackThumbnail(videoID)
		}

		canonical := strings.TrimSpace(entry.Link.Href)
		if canonical == "" {
			canonical = watchURL(videoID)
		}

		videos = append(videos, models.VideoRecord{
			ExternalID:   videoID,
			Title:        strings.TrimSpace(entry.Title),
			Description:  strings.TrimSpace(entry.Group.Description),
			ThumbnailURL: thumb,
			CanonicalURL: canonical,
			PublishedAt:  parsePublished(entry.Published),
		})
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].PublishedAt.After(videos[j].PublishedAt)
	})

	return videos, nil
}
