package ingestion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emarutian/recipesync/internal/models"
)

// ContentStore is the persisted content collaborator used by the orchestrator.
type ContentStore interface {
	// List returns the inventory subset of every stored record. It must
	// reflect the store at call time and fail rather than return a partial list.
	List(ctx context.Context) ([]models.InventoryEntry, error)

	// Read returns the record stored under slug, or models.ErrNotFound.
	Read(ctx context.Context, slug string) (*models.ContentRecord, error)

	// Create persists a new record. It returns models.ErrSlugExists when the
	// slug is taken and never overwrites an existing record.
	Create(ctx context.Context, record models.ContentRecord) error
}

// RecipeRepository extends ContentStore with the operations of the editing
// surface.
type RecipeRepository interface {
	ContentStore

	// ListRecords returns full records ordered newest first.
	ListRecords(ctx context.Context) ([]models.ContentRecord, error)

	// Update replaces the editable fields of an existing record. Slug,
	// external id and creation time are preserved.
	Update(ctx context.Context, record models.ContentRecord) error
}

// MemoryContentStore implements RecipeRepository in memory for tests and
// local development.
type MemoryContentStore struct {
	mu          sync.RWMutex
	records     map[string]models.ContentRecord
	externalIdx map[string]string // external id -> slug
}

// NewMemoryContentStore creates an empty in-memory store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		records:     make(map[string]models.ContentRecord),
		externalIdx: make(map[string]string),
	}
}

// List returns all inventory entries.
func (s *MemoryContentStore) List(ctx context.Context) ([]models.InventoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.InventoryEntry, 0, len(s.records))
	for _, record := range s.records {
		entries = append(entries, record.Entry())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slug < entries[j].Slug })
	return entries, nil
}

// Read retrieves a record by slug.
func (s *MemoryContentStore) Read(ctx context.Context, slug string) (*models.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[slug]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &record, nil
}

// Create stores a new record.
func (s *MemoryContentStore) Create(ctx context.Context, record models.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Slug]; exists {
		return models.ErrSlugExists
	}
	if record.ExternalID != "" {
		if _, exists := s.externalIdx[record.ExternalID]; exists {
			return models.ErrDuplicateExternalID
		}
		s.externalIdx[record.ExternalID] = record.Slug
	}
	if record.Revision == 0 {
		record.Revision = 1
	}
	s.records[record.Slug] = record
	return nil
}

// ListRecords returns all records, newest first.
func (s *MemoryContentStore) ListRecords(ctx context.Context) ([]models.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.ContentRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Slug < records[j].Slug
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Update replaces the editable fields of an existing record.
func (s *MemoryContentStore) Update(ctx context.Context, record models.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.Slug]
	if !ok {
		return models.ErrNotFound
	}

	now := time.Now().UTC()
	record.ExternalID = existing.ExternalID
	record.CreatedAt = existing.CreatedAt
	record.Revision = existing.Revision + 1
	record.UpdatedAt = &now
	s.records[record.Slug] = record
	return nil
}

// Count returns the number of stored records.
func (s *MemoryContentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
