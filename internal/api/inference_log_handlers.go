package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/models"
)

const maxInferenceLogLimit = 200

// InferenceLogLister reads recorded synthesis calls.
type InferenceLogLister interface {
	Recent(ctx context.Context, limit int) ([]models.InferenceLog, error)
}

// InferenceLogHandler exposes recent synthesis calls to admins.
type InferenceLogHandler struct {
	logs   InferenceLogLister
	logger *slog.Logger
}

// NewInferenceLogHandler creates a new inference log handler
func NewInferenceLogHandler(logs InferenceLogLister, logger *slog.Logger) *InferenceLogHandler {
	return &InferenceLogHandler{logs: logs, logger: logger}
}

// ListInferenceLogs handles GET /api/admin/inference-logs?limit=N
func (h *InferenceLogHandler) ListInferenceLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"}, h.logger)
			return
		}
		limit = min(parsed, maxInferenceLogLimit)
	}

	logs, err := h.logs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list inference logs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch inference logs"}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)}, h.logger)
}

// RegisterInferenceLogRoutes mounts the admin inference log endpoint. Only
// the Postgres backend records inference logs.
func RegisterInferenceLogRoutes(mux *http.ServeMux, logs InferenceLogLister, authConfig auth.Config, logger *slog.Logger) {
	handler := NewInferenceLogHandler(logs, logger)
	mux.Handle("/api/admin/inference-logs", auth.AuthMiddleware(authConfig)(http.HandlerFunc(handler.ListInferenceLogs)))
}
