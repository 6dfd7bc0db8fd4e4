package synthesis

import (
	"fmt"
	"strings"

	"github.com/emarutian/recipesync/internal/models"
)

const systemPrompt = `You are a helpful cooking assistant. You turn cooking video metadata into complete, practical recipes.
Respond ONLY with a valid JSON object. Do not wrap it in markdown code blocks.`

const recipeTemplate = `Based on this YouTube cooking video, generate a detailed recipe.

Video Title: %s
Video Description: %s

Generate a JSON object with the following structure:
{
  "description": "A brief 1-2 sentence description of the dish",
  "difficulty": "Easy" or "Medium" or "Hard",
  "prepTime": "X mins",
  "cookTime": "X mins",
  "totalTime": "X mins",
  "servings": "X",
  "ingredients": ["ingredient 1 with measurement", "ingredient 2 with measurement", ...],
  "instructions": ["Step 1 detailed instruction", "Step 2 detailed instruction", ...],
  "tips": ["Pro tip 1", "Pro tip 2", "Pro tip 3"],
  "variations": ["Variation 1", "Variation 2", "Variation 3"]
}

Make sure:
- Ingredients include specific measurements
- Instructions are clear, numbered steps
- Include 3-5 practical tips
- Include 2-4 variations or substitutions
- Times are realistic estimates`

// BuildRecipePrompt renders the user prompt for one video.
func BuildRecipePrompt(video models.VideoRecord) string {
	description := strings.TrimSpace(video.Description)
	if description == "" {
		description = "(no description provided)"
	}
	return fmt.Sprintf(recipeTemplate, strings.TrimSpace(video.Title), description)
}
