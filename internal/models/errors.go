package models

import "errors"

var (
	// ErrNotFound is returned when a content record does not exist.
	ErrNotFound = errors.New("content record not found")

	// ErrSlugExists is returned when creating a record under a slug already in use.
	ErrSlugExists = errors.New("slug already exists")

	// ErrDuplicateExternalID is returned when a store rejects a second record for the same video.
	ErrDuplicateExternalID = errors.New("external id already exists")
)
