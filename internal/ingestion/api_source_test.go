package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlaylist serves total items in pages, newest first, ids vid-0..vid-N.
func fakePlaylist(t *testing.T, total int) (*httptest.Server, *[]string) {
	t.Helper()
	var requests []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		q := r.URL.Query()

		if r.URL.Path != "/playlistItems" {
			http.NotFound(w, r)
			return
		}
		if q.Get("key") != "test-key" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		if q.Get("playlistId") != "UUchannel123" {
			http.Error(w, "bad playlist", http.StatusBadRequest)
			return
		}

		size, _ := strconv.Atoi(q.Get("maxResults"))
		offset := 0
		if token := q.Get("pageToken"); token != "" {
			offset, _ = strconv.Atoi(token)
		}

		items := []map[string]any{}
		for i := offset; i < total && i < offset+size; i++ {
			id := fmt.Sprintf("vid-%d", i)
			snippet := map[string]any{
				"title":       fmt.Sprintf("Recipe %d &amp; Friends", i),
				"description": "Tasty &quot;food&quot;",
				"publishedAt": "2024-03-01T10:00:00Z",
				"resourceId":  map[string]any{"videoId": id},
				"thumbnails":  map[string]any{},
			}
			if i%2 == 0 {
				snippet["thumbnails"] = map[string]any{"medium": map[string]any{"url": "https://img/" + id + "/mq.jpg"}}
			}
			items = append(items, map[string]any{"snippet": snippet})
		}

		resp := map[string]any{"items": items}
		if offset+size < total {
			resp["nextPageToken"] = strconv.Itoa(offset + size)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestAPISource_PaginatesUntilLimit(t *testing.T) {
	srv, requests := fakePlaylist(t, 120)
	source := NewAPISource(srv.URL, "test-key", "UCchannel123", srv.Client(), discardLogger())

	videos := source.FetchRecentVideos(context.Background(), 75)
	if len(videos) != 75 {
		t.Fatalf("expected 75 videos, got %d", len(videos))
	}
	if len(*requests) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(*requests))
	}
	if videos[0].ExternalID != "vid-0" || videos[74].ExternalID != "vid-74" {
		t.Errorf("unexpected ordering: first %s last %s", videos[0].ExternalID, videos[74].ExternalID)
	}

	first := videos[0]
	if first.Title != "Recipe 0 & Friends" {
		t.Errorf("expected decoded title, got %q", first.Title)
	}
	if first.Description != `Tasty "food"` {
		t.Errorf("expected decoded description, got %q", first.Description)
	}
	if first.ThumbnailURL != "https://img/vid-0/mq.jpg" {
		t.Errorf("expected medium thumbnail, got %q", first.ThumbnailURL)
	}
	if videos[1].ThumbnailURL != "https://i.ytimg.com/vi/vid-1/hqdefault.jpg" {
		t.Errorf("expected fallback thumbnail, got %q", videos[1].ThumbnailURL)
	}
	if first.CanonicalURL != "https://www.youtube.com/watch?v=vid-0" {
		t.Errorf("unexpected canonical url %q", first.CanonicalURL)
	}
	if first.PublishedAt.IsZero() {
		t.Error("expected published time to be parsed")
	}
}

func TestAPISource_StopsWhenSourceExhausted(t *testing.T) {
	srv, requests := fakePlaylist(t, 7)
	source := NewAPISource(srv.URL, "test-key", "UCchannel123", srv.Client(), discardLogger())

	videos := source.FetchRecentVideos(context.Background(), 50)
	if len(videos) != 7 {
		t.Fatalf("expected 7 videos, got %d", len(videos))
	}
	if len(*requests) != 1 {
		t.Errorf("expected a single request, got %d", len(*requests))
	}
}

func TestAPISource_FailureYieldsEmpty(t *testing.T) {
	srv, _ := fakePlaylist(t, 10)
	source := NewAPISource(srv.URL, "wrong-key", "UCchannel123", srv.Client(), discardLogger())

	if videos := source.FetchRecentVideos(context.Background(), 10); len(videos) != 0 {
		t.Fatalf("expected empty result on 403, got %d videos", len(videos))
	}
}

func TestAPISource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"snippet":{"title":"Soup","resourceId":{"videoId":"abc"}}}]}`))
	}))
	defer srv.Close()

	source := NewAPISource(srv.URL, "k", "UCx", srv.Client(), discardLogger())
	source.backoff = fastBackoff(2)

	videos := source.FetchRecentVideos(context.Background(), 5)
	if len(videos) != 1 || videos[0].ExternalID != "abc" {
		t.Fatalf("expected one video after retry, got %+v", videos)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestUploadsPlaylistID(t *testing.T) {
	if got := uploadsPlaylistID("UCabc"); got != "UUabc" {
		t.Errorf("uploadsPlaylistID(UCabc) = %q", got)
	}
	if got := uploadsPlaylistID("PLxyz"); got != "PLxyz" {
		t.Errorf("uploadsPlaylistID(PLxyz) = %q", got)
	}
}
