package synthesis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emarutian/recipesync/internal/models"
)

// ErrInvalidDraft is returned when model output cannot become a valid draft.
var ErrInvalidDraft = errors.New("invalid recipe draft")

// rawDraft mirrors the model's JSON. Difficulty is decoded loosely and
// canonicalized afterwards.
type rawDraft struct {
	Description  string    `json:"description"`
	Difficulty   string    `json:"difficulty"`
	PrepTime     looseText `json:"prepTime"`
	CookTime     looseText `json:"cookTime"`
	TotalTime    looseText `json:"totalTime"`
	Servings     looseText `json:"servings"`
	Ingredients  []string  `json:"ingredients"`
	Instructions []string  `json:"instructions"`
	Tips         []string  `json:"tips"`
	Variations   []string  `json:"variations"`
}

// looseText holds a free-form field the model may send as a string, a
// number or null. Non-string values keep their JSON text.
type looseText string

func (t *looseText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = looseText(s)
		return nil
	}
	*t = looseText(data)
	return nil
}

// ParseDraft unwraps an optionally fenced JSON object and validates it.
func ParseDraft(text string) (*models.RecipeDraft, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidDraft)
	}

	var raw rawDraft
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	difficulty, err := models.ParseDifficulty(raw.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	draft := &models.RecipeDraft{
		Description:  strings.TrimSpace(raw.Description),
		Difficulty:   difficulty,
		PrepTime:     strings.TrimSpace(string(raw.PrepTime)),
		CookTime:     strings.TrimSpace(string(raw.CookTime)),
		TotalTime:    strings.TrimSpace(string(raw.TotalTime)),
		Servings:     strings.TrimSpace(string(raw.Servings)),
		Ingredients:  cleanList(raw.Ingredients),
		Instructions: cleanList(raw.Instructions),
		Tips:         cleanList(raw.Tips),
		Variations:   cleanList(raw.Variations),
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return draft, nil
}

// stripFences removes a leading ```json or ``` marker and a trailing ```.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
