package models

import "time"

// VideoRecord is one item of the external video catalog, normalized across
// source strategies. It is rebuilt on every fetch and never persisted.
type VideoRecord struct {
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	CanonicalURL string    `json:"canonical_url"`
	PublishedAt  time.Time `json:"published_at"`
}
