package models

import "time"

// InferenceLog represents a single AI model call.
type InferenceLog struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`  // 'gemini', 'openai', ...
	Operation    string    `json:"operation"` // 'recipe_synthesis'
	Model        string    `json:"model"`
	TokensUsed   int       `json:"tokens_used"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    int       `json:"latency_ms"`
	Status       string    `json:"status"` // 'success' or 'error'
	ErrorMessage string    `json:"error_message,omitempty"`
	Metadata     string    `json:"metadata"` // JSONB metadata
	CreatedAt    time.Time `json:"created_at"`
}
