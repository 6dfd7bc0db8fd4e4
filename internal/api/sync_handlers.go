package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/ingestion"
	"github.com/emarutian/recipesync/internal/models"
)

const manualTriggerHeader = "x-manual-trigger"

// SyncRunner executes one orchestration run.
type SyncRunner interface {
	Run(ctx context.Context, trigger models.Trigger) (*models.RunReport, error)
}

// SyncResponse is the trigger endpoint's JSON body.
type SyncResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message,omitempty"`
	Created        int      `json:"created"`
	CreatedRecipes []string `json:"createdRecipes,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	Remaining      int      `json:"remaining,omitempty"`
	RunID          string   `json:"runId,omitempty"`
}

// SyncErrorResponse is returned for runs that abort.
type SyncErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SyncHandler exposes the video sync trigger.
type SyncHandler struct {
	runner SyncRunner
	logger *slog.Logger
}

// NewSyncHandler creates a new sync trigger handler
func NewSyncHandler(runner SyncRunner, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		logger: logger,
	}
}

// SyncVideos handles GET and POST /api/cron/sync-videos
func (h *SyncHandler) SyncVideos(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Manual-Trigger")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	trigger := triggerFromRequest(r)
	report, err := h.runner.Run(r.Context(), trigger)
	if err != nil {
		h.writeRunError(w, trigger, err)
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Success:        true,
		Message:        report.Message,
		Created:        report.CreatedCount(),
		CreatedRecipes: report.CreatedTitles,
		Errors:         report.Errors,
		Remaining:      report.RemainingCount,
		RunID:          report.RunID,
	}, h.logger)
}

// triggerFromRequest maps the request onto a trigger. POST, or GET carrying
// the manual-trigger header, is an admin action; any other GET is the
// external scheduler.
func triggerFromRequest(r *http.Request) models.Trigger {
	credential, _ := auth.BearerToken(r)

	kind := models.TriggerScheduled
	if r.Method == http.MethodPost || r.Header.Get(manualTriggerHeader) == "true" {
		kind = models.TriggerManual
	}
	return models.Trigger{Kind: kind, Credential: credential}
}

func (h *SyncHandler) writeRunError(w http.ResponseWriter, trigger models.Trigger, err error) {
	switch {
	case errors.Is(err, ingestion.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, SyncErrorResponse{Error: "Unauthorized"}, h.logger)
	case errors.Is(err, ingestion.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, SyncErrorResponse{Error: "Sync already in progress"}, h.logger)
	default:
		h.logger.Error("sync run aborted", "trigger", trigger.Kind, "error", err)
		writeJSON(w, http.StatusInternalServerError, SyncErrorResponse{
			Error:   "Failed to sync videos",
			Details: err.Error(),
		}, h.logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
