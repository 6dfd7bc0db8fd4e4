package models

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is the closed set of recipe difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty canonicalizes raw (case-insensitive, surrounding space ignored).
func ParseDifficulty(raw string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("difficulty must be one of Easy, Medium, Hard, got %q", raw)
	}
}

// RecipeDraft is the structured recipe payload produced by the synthesizer.
// Duration and servings fields are free-form text.
type RecipeDraft struct {
	Description  string     `json:"description"`
	Difficulty   Difficulty `json:"difficulty"`
	PrepTime     string     `json:"prepTime"`
	CookTime     string     `json:"cookTime"`
	TotalTime    string     `json:"totalTime"`
	Servings     string     `json:"servings"`
	Ingredients  []string   `json:"ingredients"`
	Instructions []string   `json:"instructions"`
	Tips         []string   `json:"tips"`
	Variations   []string   `json:"variations"`
}

// Validate checks the invariants a draft must hold before it can be persisted.
func (d RecipeDraft) Validate() error {
	if len(nonBlank(d.Ingredients)) == 0 {
		return fmt.Errorf("ingredients must not be empty")
	}
	if len(nonBlank(d.Instructions)) == 0 {
		return fmt.Errorf("instructions must not be empty")
	}
	if !d.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q", d.Difficulty)
	}
	return nil
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// ContentRecord is a persisted recipe addressable by slug.
type ContentRecord struct {
	Slug         string `json:"slug"`
	ExternalID   string `json:"externalId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	SourceURL    string `json:"sourceUrl"`
	RecipeDraft
	IsPublished bool       `json:"isPublished"`
	Rating      float64    `json:"rating"`
	RatingCount int        `json:"ratingCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Revision    int        `json:"revision"`
}

// Entry returns the inventory subset used for duplicate detection.
func (r ContentRecord) Entry() InventoryEntry {
	return InventoryEntry{ExternalID: r.ExternalID, Slug: r.Slug}
}

// Validate checks the fields an editor is required to keep populated.
func (r ContentRecord) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("description is required")
	}
	return r.RecipeDraft.Validate()
}

// InventoryEntry is the part of a ContentRecord needed for deduplication.
type InventoryEntry struct {
	ExternalID string `json:"externalId"`
	Slug       string `json:"slug"`
}
