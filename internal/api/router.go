package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/ingestion"
)

// HealthChecker reports the health of a backing dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, runner SyncRunner, recipes ingestion.RecipeRepository, authConfig auth.Config, health HealthChecker, logger *slog.Logger) {
	syncHandler := NewSyncHandler(runner, logger)
	recipeHandler := NewRecipeHandler(recipes, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	// Auth middleware
	authMiddleware := auth.AuthMiddleware(authConfig)

	mux.HandleFunc("/healthz", healthHandler(health, logger))

	// Trigger endpoint authorizes inside the orchestrator
	mux.HandleFunc("/api/cron/sync-videos", syncHandler.SyncVideos)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.Handle("/api/auth/validate", authMiddleware(http.HandlerFunc(authHandler.ValidateToken)))

	// Recipe routes (public reads, admin edits)
	mux.HandleFunc("/api/recipes", recipeHandler.ListRecipes)
	updateRecipe := authMiddleware(http.HandlerFunc(recipeHandler.UpdateRecipe))
	mux.HandleFunc("/api/recipes/{slug}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
		case http.MethodPatch:
			updateRecipe.ServeHTTP(w, r)
		default:
			recipeHandler.GetRecipe(w, r)
		}
	})
}

func healthHandler(health HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.HealthCheck(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, logger)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}
