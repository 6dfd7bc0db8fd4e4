package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/ingestion"
	"github.com/emarutian/recipesync/internal/models"
)

// RecipeHandler serves the recipe read API and the admin edit endpoint.
type RecipeHandler struct {
	repo   ingestion.RecipeRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewRecipeHandler creates a new recipe handler
func NewRecipeHandler(repo ingestion.RecipeRepository, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RecipesResponse is the list endpoint's JSON body.
type RecipesResponse struct {
	Recipes []models.ContentRecord `json:"recipes"`
	Count   int                    `json:"count"`
}

// RecipeUpdateRequest carries the editable fields of a recipe. Omitted
// fields keep their stored values. Slug, externalId and createdAt are
// accepted only when they match the stored record.
type RecipeUpdateRequest struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	Difficulty   *string   `json:"difficulty"`
	PrepTime     *string   `json:"prepTime"`
	CookTime     *string   `json:"cookTime"`
	TotalTime    *string   `json:"totalTime"`
	Servings     *string   `json:"servings"`
	Ingredients  *[]string `json:"ingredients"`
	Instructions *[]string `json:"instructions"`
	Tips         *[]string `json:"tips"`
	Variations   *[]string `json:"variations"`
	IsPublished  *bool     `json:"isPublished"`

	Slug       *string    `json:"slug"`
	ExternalID *string    `json:"externalId"`
	CreatedAt  *time.Time `json:"createdAt"`
}

// ListRecipes handles GET /api/recipes
func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.repo.ListRecords(r.Context())
	if err != nil {
		h.logger.Error("failed to list recipes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to fetch recipes",
			"recipes": []models.ContentRecord{},
		}, h.logger)
		return
	}

	if r.URL.Query().Get("published") == "true" {
		published := make([]models.ContentRecord, 0, len(records))
		for _, record := range records {
			if record.IsPublished {
				published = append(published, record)
			}
		}
		records = published
	}

	writeJSON(w, http.StatusOK, RecipesResponse{Recipes: records, Count: len(records)}, h.logger)
}

// GetRecipe handles GET /api/recipes/{slug}
func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	record, err := h.repo.Read(r.Context(), r.PathValue("slug"))
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Recipe not found"}, h.logger)
		return
	}
	if err != nil {
		h.logger.Error("failed to read recipe", "slug", r.PathValue("slug"), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"recipe": record}, h.logger)
}

// UpdateRecipe handles PATCH /api/recipes/{slug}. It must be wrapped by the
// admin auth middleware.
func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := r.PathValue("slug")

	var req RecipeUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, h.logger)
		return
	}

	existing, err := h.repo.Read(r.Context(), slug)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Recipe not found"}, h.logger)
		return
	}
	if err != nil {
		h.logger.Error("failed to read recipe", "slug", slug, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	updated, err := h.applyUpdate(*existing, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, h.logger)
		return
	}

	if err := h.repo.Update(r.Context(), updated); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Recipe not found"}, h.logger)
			return
		}
		h.logger.Error("failed to update recipe", "slug", slug, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update recipe"}, h.logger)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.logger.Info("recipe updated", "slug", slug, "user", userID, "published", updated.IsPublished)

	stored, err := h.repo.Read(r.Context(), slug)
	if err != nil {
		stored = &updated
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recipe": stored}, h.logger)
}

func (h *RecipeHandler) applyUpdate(record models.ContentRecord, req RecipeUpdateRequest) (models.ContentRecord, error) {
	if err := checkIdentity(record, req); err != nil {
		return record, err
	}

	setString(&record.Title, req.Title)
	setString(&record.Description, req.Description)
	setString(&record.ThumbnailURL, req.ThumbnailURL)
	setString(&record.PrepTime, req.PrepTime)
	setString(&record.CookTime, req.CookTime)
	setString(&record.TotalTime, req.TotalTime)
	setString(&record.Servings, req.Servings)
	setList(&record.Ingredients, req.Ingredients)
	setList(&record.Instructions, req.Instructions)
	setList(&record.Tips, req.Tips)
	setList(&record.Variations, req.Variations)

	if req.Difficulty != nil {
		difficulty, err := parseDifficulty(*req.Difficulty)
		if err != nil {
			return record, err
		}
		record.Difficulty = difficulty
	}

	if req.IsPublished != nil {
		if *req.IsPublished && !record.IsPublished && record.PublishedAt == nil {
			now := h.now().UTC()
			record.PublishedAt = &now
		}
		record.IsPublished = *req.IsPublished
	}

	if err := record.Validate(); err != nil {
		return record, err
	}
	return record, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setList(dst *[]string, src *[]string) {
	if src == nil {
		return
	}
	out := make([]string, 0, len(*src))
	for _, item := range *src {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*dst = out
}
