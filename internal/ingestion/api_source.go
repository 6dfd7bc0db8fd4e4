package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emarutian/recipesync/internal/models"
)

// maxAPIPageSize is the largest page the playlistItems endpoint serves.
const maxAPIPageSize = 50

// APISource lists a channel's uploads through the keyed YouTube Data API,
// following continuation tokens until the limit is reached.
type APISource struct {
	baseURL   string
	apiKey    string
	channelID string
	client    *http.Client
	logger    *slog.Logger
	backoff   Backoff
}

// NewAPISource creates a keyed API video source.
func NewAPISource(baseURL, apiKey, channelID string, client *http.Client, logger *slog.Logger) *APISource {
	return &APISource{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		channelID: channelID,
		client:    client,
		logger:    logger,
		backoff:   defaultBackoff(),
	}
}

// Name returns the strategy name.
func (s *APISource) Name() string {
	return "youtube-api:" + s.channelID
}

type playlistItemsResponse struct {
	NextPageToken string         `json:"nextPageToken"`
	Items         []playlistItem `json:"items"`
}

type playlistItem struct {
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
		Thumbnails  struct {
			High    *thumbnail `json:"high"`
			Medium  *thumbnail `json:"medium"`
			Default *thumbnail `json:"default"`
		} `json:"thumbnails"`
		ResourceID struct {
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
	} `json:"snippet"`
	ContentDetails struct {
		VideoID string `json:"videoId"`
	} `json:"contentDetails"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// FetchRecentVideos pages through the uploads playlist. Any page failure
// discards everything fetched so far and returns an empty result.
func (s *APISource) FetchRecentVideos(ctx context.Context, limit int) []models.VideoRecord {
	if limit <= 0 {
		return nil
	}

	playlistID := uploadsPlaylistID(s.channelID)
	videos := make([]models.VideoRecord, 0, limit)
	pageToken := ""

	for len(videos) < limit {
		pageSize := min(maxAPIPageSize, limit-len(videos))

		page, err := withRetry(ctx, s.backoff, func(ctx context.Context) (*playlistItemsResponse, error) {
			return s.fetchPage(ctx, playlistID, pageToken, pageSize)
		})
		if err != nil {
			s.logger.Error("failed to fetch youtube playlist page",
				"playlist_id", playlistID,
				"fetched", len(videos),
				"error", err)
			return nil
		}

		for _, item := range page.Items {
			video, ok := item.toVideoRecord()
			if !ok {
				continue
			}
			videos = append(videos, video)
			if len(videos) >= limit {
				break
			}
		}

		if page.NextPageToken == "" || len(page.Items) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	s.logger.Debug("fetched videos from youtube api", "playlist_id", playlistID, "count", len(videos))
	return videos
}

func (s *APISource) fetchPage(ctx context.Context, playlistID, pageToken string, pageSize int) (*playlistItemsResponse, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(pageSize))
	params.Set("key", s.apiKey)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/playlistItems?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request playlist items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		statusErr := fmt.Errorf("youtube api returned status %d", resp.StatusCode)
		if delay := parseRetryAfter(resp.Header.Get("Retry-After")); delay > 0 {
			return nil, transientAfter(statusErr, delay)
		}
		return nil, transient(statusErr)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("youtube api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page playlistItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode playlist items: %w", err)
	}
	return &page, nil
}

func (item playlistItem) toVideoRecord() (models.VideoRecord, bool) {
	videoID := item.Snippet.ResourceID.VideoID
	if videoID == "" {
		videoID = item.ContentDetails.VideoID
	}
	if videoID == "" {
		return models.VideoRecord{}, false
	}

	thumb := fallbackThumbnail(videoID)
	for _, t := range []*thumbnail{item.Snippet.Thumbnails.High, item.Snippet.Thumbnails.Medium, item.Snippet.Thumbnails.Default} {
		if t != nil && t.URL != "" {
			thumb = t.URL
			break
		}
	}

	return models.VideoRecord{
		ExternalID:   videoID,
		Title:        decodeText(item.Snippet.Title),
		Description:  decodeText(item.Snippet.Description),
		ThumbnailURL: thumb,
		CanonicalURL: watchURL(videoID),
		PublishedAt:  parsePublished(item.Snippet.PublishedAt),
	}, true
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(raw string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// uploadsPlaylistID maps a channel id (UC...) to its uploads playlist (UU...).
// Anything else is assumed to already be a playlist id.
func uploadsPlaylistID(channelID string) string {
	if strings.HasPrefix(channelID, "UC") {
		return "UU" + channelID[2:]
	}
	return channelID
}
