package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emarutian/recipesync/internal/auth"
)

// AuthHandler issues admin tokens for the recipe editing surface.
type AuthHandler struct {
	config auth.Config
	logger *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(config auth.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{config: config, logger: logger}
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a signed admin token.
type LoginResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, h.logger)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	err := h.config.CheckAdminCredentials(email, req.Password)
	switch {
	case errors.Is(err, auth.ErrAdminDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Admin login is not configured"}, h.logger)
		return
	case err != nil:
		// Same body for unknown email and wrong password
		h.logger.Warn("admin login rejected", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"}, h.logger)
		return
	}

	token, expiresAt, err := auth.GenerateToken(email, h.config.JWTSecret, h.config.TokenDuration)
	if err != nil {
		h.logger.Error("failed to sign admin token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to issue token"}, h.logger)
		return
	}

	h.logger.Info("admin logged in", "email", email, "expires_at", expiresAt)
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Email: email, ExpiresAt: expiresAt}, h.logger)
}

// ValidateToken handles GET /api/auth/validate behind the auth middleware.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "userID": userID}, h.logger)
}
