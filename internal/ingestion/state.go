package ingestion

import "github.com/emarutian/recipesync/internal/models"

// RunState carries the membership sets for one orchestration run. It is
// seeded from the inventory and updated as records are created, so slugs
// allocated earlier in the same run are never reused.
type RunState struct {
	externalIDs map[string]struct{}
	slugs       map[string]struct{}
}

// NewRunState builds a RunState from the current inventory.
func NewRunState(inventory []models.InventoryEntry) *RunState {
	state := &RunState{
		externalIDs: make(map[string]struct{}, len(inventory)),
		slugs:       make(map[string]struct{}, len(inventory)),
	}
	for _, entry := range inventory {
		if entry.ExternalID != "" {
			state.externalIDs[entry.ExternalID] = struct{}{}
		}
		if entry.Slug != "" {
			state.slugs[entry.Slug] = struct{}{}
		}
	}
	return state
}

// Known reports whether a record already exists for externalID.
func (s *RunState) Known(externalID string) bool {
	_, ok := s.externalIDs[externalID]
	return ok
}

// NewVideos returns the fetched videos without a record, in source order.
// A video listed twice in one fetch is only returned once.
func (s *RunState) NewVideos(videos []models.VideoRecord) []models.VideoRecord {
	seen := make(map[string]struct{}, len(videos))
	fresh := make([]models.VideoRecord, 0, len(videos))
	for _, video := range videos {
		if s.Known(video.ExternalID) {
			continue
		}
		if _, dup := seen[video.ExternalID]; dup {
			continue
		}
		seen[video.ExternalID] = struct{}{}
		fresh = append(fresh, video)
	}
	return fresh
}

// AllocateSlug picks a free slug for title against every slug known so far.
func (s *RunState) AllocateSlug(title string) string {
	return AllocateSlug(title, s.slugs)
}

// Commit records a successfully created record.
func (s *RunState) Commit(externalID, slug string) {
	s.externalIDs[externalID] = struct{}{}
	s.slugs[slug] = struct{}{}
}

// Reserve marks slug as taken without recording a created record, for slugs
// the store reports as occupied but the inventory did not list.
func (s *RunState) Reserve(slug string) {
	s.slugs[slug] = struct{}{}
}
