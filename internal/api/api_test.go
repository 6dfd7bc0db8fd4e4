package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/ingestion"
	"github.com/emarutian/recipesync/internal/models"
)

type fakeRunner struct {
	report  *models.RunReport
	err     error
	trigger models.Trigger
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, trigger models.Trigger) (*models.RunReport, error) {
	f.calls++
	f.trigger = trigger
	return f.report, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthConfig() auth.Config {
	return auth.Config{
		JWTSecret:     "jwt-secret",
		AdminEmails:   []string{"chef@example.com"},
		AdminPassword: "hunter2",
		CronSecret:    "cron-secret",
		TokenDuration: time.Hour,
	}
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := auth.GenerateToken("chef@example.com", "jwt-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func newTestMux(runner SyncRunner, repo ingestion.RecipeRepository, health HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	SetupRoutes(mux, runner, repo, testAuthConfig(), health, discardLogger())
	return mux
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestSyncVideos_TriggerMapping(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		headers  map[string]string
		wantKind models.TriggerKind
		wantCred string
	}{
		{name: "scheduled", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer cron-secret"}, wantKind: models.TriggerScheduled, wantCred: "cron-secret"},
		{name: "get with manual header", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer tok", "x-manual-trigger": "true"}, wantKind: models.TriggerManual, wantCred: "tok"},
		{name: "post is manual", method: http.MethodPost, headers: map[string]string{"Authorization": "Bearer tok"}, wantKind: models.TriggerManual, wantCred: "tok"},
		{name: "no credential", method: http.MethodGet, wantKind: models.TriggerScheduled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{report: &models.RunReport{Message: "All videos already have recipes", CreatedTitles: []string{}, Errors: []string{}}}
			mux := newTestMux(runner, ingestion.NewMemoryContentStore(), nil)

			req := httptest.NewRequest(tt.method, "/api/cron/sync-videos", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if runner.trigger.Kind != tt.wantKind || runner.trigger.Credential != tt.wantCred {
				t.Errorf("trigger = %+v, want kind %s credential %q", runner.trigger, tt.wantKind, tt.wantCred)
			}
		})
	}
}

// authorizingRunner applies the real trigger authorizer before reporting.
type authorizingRunner struct {
	authorizer *auth.TriggerAuthorizer
}

func (r authorizingRunner) Run(ctx context.Context, trigger models.Trigger) (*models.RunReport, error) {
	if err := r.authorizer.Authorize(trigger); err != nil {
		return nil, fmt.Errorf("%w: %v", ingestion.ErrUnauthorized, err)
	}
	return &models.RunReport{Message: "All videos already have recipes", CreatedTitles: []string{}, Errors: []string{}}, nil
}

func TestSyncVideos_Authorization(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		headers    map[string]string
		wantStatus int
	}{
		{name: "cron secret", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer cron-secret"}, wantStatus: http.StatusOK},
		{name: "cron secret with manual header", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer cron-secret", "x-manual-trigger": "true"}, wantStatus: http.StatusOK},
		{name: "wrong secret with manual header", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer guess", "x-manual-trigger": "true"}, wantStatus: http.StatusUnauthorized},
		{name: "no credential", method: http.MethodGet, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := authorizingRunner{authorizer: auth.NewTriggerAuthorizer(testAuthConfig())}
			req := httptest.NewRequest(tt.method, "/api/cron/sync-videos", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			newTestMux(runner, ingestion.NewMemoryContentStore(), nil).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	t.Run("admin token", func(t *testing.T) {
		runner := authorizingRunner{authorizer: auth.NewTriggerAuthorizer(testAuthConfig())}
		req := httptest.NewRequest(http.MethodPost, "/api/cron/sync-videos", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t))
		rec := httptest.NewRecorder()
		newTestMux(runner, ingestion.NewMemoryContentStore(), nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
	})
}

func TestSyncVideos_Responses(t *testing.T) {
	t.Run("processed run", func(t *testing.T) {
		runner := &fakeRunner{report: &models.RunReport{
			RunID:          "run-1",
			Message:        "Processed 5 videos",
			ProcessedCount: 5,
			CreatedTitles:  []string{"A", "B", "C", "D"},
			Errors:         []string{"Failed to generate recipe for: E"},
			RemainingCount: 7,
		}}
		rec := httptest.NewRecorder()
		newTestMux(runner, ingestion.NewMemoryContentStore(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cron/sync-videos", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["success"] != true || body["message"] != "Processed 5 videos" || body["created"] != float64(4) || body["remaining"] != float64(7) {
			t.Errorf("unexpected body %v", body)
		}
		if errs, ok := body["errors"].([]any); !ok || len(errs) != 1 || errs[0] != "Failed to generate recipe for: E" {
			t.Errorf("unexpected errors %v", body["errors"])
		}
	})

	t.Run("nothing to do omits optional fields", func(t *testing.T) {
		runner := &fakeRunner{report: &models.RunReport{Message: "No videos found from YouTube API", CreatedTitles: []string{}, Errors: []string{}}}
		rec := httptest.NewRecorder()
		newTestMux(runner, ingestion.NewMemoryContentStore(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cron/sync-videos", nil))

		body := decodeBody(t, rec)
		if body["created"] != float64(0) {
			t.Errorf("expected created 0, got %v", body["created"])
		}
		for _, key := range []string{"createdRecipes", "errors", "remaining"} {
			if _, ok := body[key]; ok {
				t.Errorf("expected %s to be omitted", key)
			}
		}
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "unauthorized", err: fmt.Errorf("%w: bad secret", ingestion.ErrUnauthorized), wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "in progress", err: ingestion.ErrRunInProgress, wantStatus: http.StatusConflict, wantError: "Sync already in progress"},
		{name: "inventory", err: fmt.Errorf("%w: permission denied", ingestion.ErrInventoryUnavailable), wantStatus: http.StatusInternalServerError, wantError: "Failed to sync videos"},
		{name: "configuration", err: fmt.Errorf("%w: AI credential not configured", ingestion.ErrConfiguration), wantStatus: http.StatusInternalServerError, wantError: "Failed to sync videos"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.err}
			rec := httptest.NewRecorder()
			newTestMux(runner, ingestion.NewMemoryContentStore(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cron/sync-videos", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["error"] != tt.wantError || body["success"] != false {
				t.Errorf("unexpected body %v", body)
			}
			if tt.wantStatus == http.StatusInternalServerError && !strings.Contains(fmt.Sprint(body["details"]), tt.err.Error()) {
				t.Errorf("expected details to carry the cause, got %v", body["details"])
			}
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		runner := &fakeRunner{}
		rec := httptest.NewRecorder()
		newTestMux(runner, ingestion.NewMemoryContentStore(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cron/sync-videos", nil))
		if rec.Code != http.StatusMethodNotAllowed || runner.calls != 0 {
			t.Errorf("status = %d calls = %d", rec.Code, runner.calls)
		}
	})
}

func seededStore(t *testing.T) *ingestion.MemoryContentStore {
	t.Helper()
	store := ingestion.NewMemoryContentStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, published := range []bool{false, true} {
		record := models.ContentRecord{
			Slug:       fmt.Sprintf("recipe-%d", i+1),
			ExternalID: fmt.Sprintf("vid-%d", i+1),
			Title:      fmt.Sprintf("Recipe %d", i+1),
			RecipeDraft: models.RecipeDraft{
				Description:  "Tasty.",
				Difficulty:   models.DifficultyMedium,
				Ingredients:  []string{"salt"},
				Instructions: []string{"cook"},
			},
			IsPublished: published,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Create(context.Background(), record); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestRecipeReadRoutes(t *testing.T) {
	mux := newTestMux(&fakeRunner{}, seededStore(t), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recipes", nil))
	if body := decodeBody(t, rec); body["count"] != float64(2) {
		t.Errorf("expected 2 recipes, got %v", body["count"])
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recipes?published=true", nil))
	body := decodeBody(t, rec)
	recipes := body["recipes"].([]any)
	if len(recipes) != 1 || recipes[0].(map[string]any)["slug"] != "recipe-2" {
		t.Errorf("expected only the published recipe, got %v", recipes)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recipes/recipe-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	recipe := decodeBody(t, rec)["recipe"].(map[string]any)
	if recipe["externalId"] != "vid-1" || recipe["difficulty"] != "Medium" {
		t.Errorf("unexpected recipe %v", recipe)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recipes/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func patchRecipe(t *testing.T, mux http.Handler, slug, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/recipes/"+slug, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestUpdateRecipe(t *testing.T) {
	store := seededStore(t)
	mux := newTestMux(&fakeRunner{}, store, nil)
	token := adminToken(t)

	t.Run("requires admin", func(t *testing.T) {
		rec := patchRecipe(t, mux, "recipe-1", "", `{"title":"Hacked"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("publishes and edits", func(t *testing.T) {
		rec := patchRecipe(t, mux, "recipe-1", token, `{"title":"Better Recipe","difficulty":"hard","isPublished":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
		}

		stored, err := store.Read(context.Background(), "recipe-1")
		if err != nil {
			t.Fatal(err)
		}
		if stored.Title != "Better Recipe" || stored.Difficulty != models.DifficultyHard || !stored.IsPublished {
			t.Errorf("edit not applied: %+v", stored)
		}
		if stored.PublishedAt == nil {
			t.Error("expected publishedAt to be set on publish")
		}
		if stored.Revision != 2 || stored.ExternalID != "vid-1" {
			t.Errorf("unexpected revision/externalId: %d %s", stored.Revision, stored.ExternalID)
		}
	})

	validation := []struct {
		name string
		body string
	}{
		{name: "bad difficulty", body: `{"difficulty":"Expert"}`},
		{name: "empty ingredients", body: `{"ingredients":[]}`},
		{name: "blank title", body: `{"title":"  "}`},
		{name: "slug change", body: `{"slug":"other"}`},
		{name: "external id change", body: `{"externalId":"vid-9"}`},
		{name: "unknown field", body: `{"rating_override":5}`},
		{name: "malformed", body: `{`},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			rec := patchRecipe(t, mux, "recipe-2", token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("unknown slug", func(t *testing.T) {
		rec := patchRecipe(t, mux, "missing", token, `{"title":"x"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	mux := newTestMux(&fakeRunner{}, ingestion.NewMemoryContentStore(), nil)

	login := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
		return rec
	}

	rec := login(`{"email":"chef@example.com","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" || resp.ExpiresAt.Before(time.Now()) {
		t.Errorf("unexpected login response %+v", resp)
	}

	validate := httptest.NewRequest(http.MethodGet, "/api/auth/validate", nil)
	validate.Header.Set("Authorization", "Bearer "+resp.Token)
	vrec := httptest.NewRecorder()
	mux.ServeHTTP(vrec, validate)
	if vrec.Code != http.StatusOK || decodeBody(t, vrec)["userID"] != "chef@example.com" {
		t.Errorf("validate failed: %d %s", vrec.Code, vrec.Body.String())
	}

	if rec := login(`{"email":"chef@example.com","password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", rec.Code)
	}
	if rec := login(`not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	healthy := newTestMux(&fakeRunner{}, ingestion.NewMemoryContentStore(), nil)
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	failing := HealthCheckFunc(func(ctx context.Context) error { return errors.New("db down") })
	unhealthy := newTestMux(&fakeRunner{}, ingestion.NewMemoryContentStore(), failing)
	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

type fakeInferenceLogs struct {
	limit int
	err   error
}

func (f *fakeInferenceLogs) Recent(ctx context.Context, limit int) ([]models.InferenceLog, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.InferenceLog{{ID: "1", Provider: "gemini", Operation: "recipe_synthesis", Status: "success"}}, nil
}

func TestInferenceLogRoutes(t *testing.T) {
	logs := &fakeInferenceLogs{}
	mux := http.NewServeMux()
	RegisterInferenceLogRoutes(mux, logs, testAuthConfig(), discardLogger())
	token := adminToken(t)

	get := func(target string, withToken bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if withToken {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("/api/admin/inference-logs", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec := get("/api/admin/inference-logs?limit=1000", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if logs.limit != maxInferenceLogLimit {
		t.Errorf("expected limit capped at %d, got %d", maxInferenceLogLimit, logs.limit)
	}
	if body := decodeBody(t, rec); body["count"] != float64(1) {
		t.Errorf("unexpected body %v", body)
	}

	if rec := get("/api/admin/inference-logs?limit=abc", true); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}

	logs.err = errors.New("db down")
	if rec := get("/api/admin/inference-logs", true); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
