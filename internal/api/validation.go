package api

import (
	"fmt"

	"github.com/emarutian/recipesync/internal/models"
)

// ValidationError reports a rejected field in an edit request.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// checkIdentity rejects edits that would change the fields identifying a
// record. Echoing the stored value back is allowed.
func checkIdentity(record models.ContentRecord, req RecipeUpdateRequest) error {
	if req.Slug != nil && *req.Slug != record.Slug {
		return ValidationError{Field: "slug", Message: "is immutable"}
	}
	if req.ExternalID != nil && *req.ExternalID != record.ExternalID {
		return ValidationError{Field: "externalId", Message: "is immutable"}
	}
	if req.CreatedAt != nil && !req.CreatedAt.Equal(record.CreatedAt) {
		return ValidationError{Field: "createdAt", Message: "is immutable"}
	}
	return nil
}

// parseDifficulty canonicalizes an edited difficulty.
func parseDifficulty(raw string) (models.Difficulty, error) {
	difficulty, err := models.ParseDifficulty(raw)
	if err != nil {
		return "", ValidationError{Field: "difficulty", Message: "must be Easy, Medium, or Hard"}
	}
	return difficulty, nil
}
