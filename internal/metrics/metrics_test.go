package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emarutian/recipesync/internal/models"
)

func scrape(t *testing.T, collector *HTTPCollector) string {
	t.Helper()

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestHTTPCollectorRecordsMetrics(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/recipes/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(mux)

	for _, path := range []string{"/api/recipes/pancakes", "/api/recipes/soup", "/nowhere"} {
		instrumented.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `recipesync_http_requests_total{method="GET",route="GET /api/recipes/{slug}",status="202"} 2`) {
		t.Fatalf("requests_total metric not recorded by route, body=%q", body)
	}
	if !strings.Contains(body, `recipesync_http_requests_total{method="GET",route="unmatched",status="404"} 1`) {
		t.Fatalf("unmatched request not recorded, body=%q", body)
	}
	if !strings.Contains(body, `recipesync_http_request_duration_seconds_count{method="GET",route="GET /api/recipes/{slug}",status="202"} 2`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, "recipesync_http_requests_in_flight 0") {
		t.Errorf("in-flight gauge should settle at zero, body=%q", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected runtime collectors to be registered")
	}
}

func TestSyncCollectorRecordsRuns(t *testing.T) {
	httpCollector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}
	sync, err := NewSyncCollector(httpCollector.Registry())
	if err != nil {
		t.Fatalf("NewSyncCollector returned error: %v", err)
	}

	sync.RunFinished(models.TriggerScheduled, "success", &models.RunReport{
		CreatedTitles:  []string{"a", "b"},
		RemainingCount: 7,
	}, 2*time.Second)
	sync.RunFinished(models.TriggerManual, "unauthorized", nil, time.Millisecond)
	sync.VideoFailed("synthesis")
	sync.ObserveTokens("gemini-1.5-flash", 100, 250)

	body := scrape(t, httpCollector)
	for _, want := range []string{
		`recipesync_sync_runs_total{outcome="success",trigger="scheduled"} 1`,
		`recipesync_sync_runs_total{outcome="unauthorized",trigger="manual"} 1`,
		`recipesync_sync_recipes_created_total 2`,
		`recipesync_sync_remaining_videos 7`,
		`recipesync_sync_video_failures_total{stage="synthesis"} 1`,
		`recipesync_synthesis_tokens_total{kind="completion",model="gemini-1.5-flash"} 250`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}

	if _, err := NewSyncCollector(httpCollector.Registry()); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
