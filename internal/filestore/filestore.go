// Package filestore keeps recipe content as a directory tree: one directory
// per slug holding index.yaml and an empty content.mdx body.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emarutian/recipesync/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	indexFile   = "index.yaml"
	contentFile = "content.mdx"
	dateLayout  = "2006-01-02"
)

// document is the on-disk shape of index.yaml.
type document struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	YoutubeURL   string   `yaml:"youtubeUrl"`
	YoutubeID    string   `yaml:"youtubeId"`
	ThumbnailURL string   `yaml:"thumbnailUrl"`
	Difficulty   string   `yaml:"difficulty"`
	PrepTime     string   `yaml:"prepTime"`
	CookTime     string   `yaml:"cookTime"`
	TotalTime    string   `yaml:"totalTime"`
	Servings     string   `yaml:"servings"`
	Ingredients  []string `yaml:"ingredients"`
	Instructions []string `yaml:"instructions"`
	Tips         []string `yaml:"tips"`
	Variations   []string `yaml:"variations"`
	Rating       float64  `yaml:"rating"`
	RatingCount  int      `yaml:"ratingCount"`
	IsPublished  bool     `yaml:"isPublished"`
	PublishedAt  string   `yaml:"publishedAt,omitempty"`
	CreatedAt    string   `yaml:"createdAt,omitempty"`
	UpdatedAt    string   `yaml:"updatedAt,omitempty"`
}

// Store is a content store rooted at a local directory.
type Store struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates the root directory if needed and returns a store over it.
func New(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory %s: %w", root, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the content directory.
func (s *Store) Root() string {
	return s.root
}

// List returns the inventory of every slug directory. A directory without
// index.yaml still occupies its slug and is listed with no external id.
// Any unreadable or unparseable document fails the whole listing.
func (s *Store) List(ctx context.Context) ([]models.InventoryEntry, error) {
	records, bare, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.InventoryEntry, 0, len(records)+len(bare))
	for _, record := range records {
		entries = append(entries, record.Entry())
	}
	for _, slug := range bare {
		entries = append(entries, models.InventoryEntry{Slug: slug})
	}
	return entries, nil
}

// ListRecords returns every record, newest first.
func (s *Store) ListRecords(ctx context.Context) ([]models.ContentRecord, error) {
	records, _, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Slug < records[j].Slug
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Read returns the record stored under slug.
func (s *Store) Read(ctx context.Context, slug string) (*models.ContentRecord, error) {
	if !validSlug(slug) {
		return nil, models.ErrNotFound
	}
	record, err := s.readRecord(slug)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Create writes a new record directory. An existing directory for the slug,
// with or without an index.yaml, yields models.ErrSlugExists.
func (s *Store) Create(ctx context.Context, record models.ContentRecord) error {
	if !validSlug(record.Slug) {
		return fmt.Errorf("invalid slug %q", record.Slug)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, record.Slug)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create %s: %w", record.Slug, models.ErrSlugExists)
		}
		return fmt.Errorf("failed to create recipe directory %s: %w", dir, err)
	}

	if err := writeDocument(dir, toDocument(record)); err != nil {
		s.removePartial(dir)
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, contentFile), nil, 0644); err != nil {
		s.removePartial(dir)
		return fmt.Errorf("failed to save %s: %w", contentFile, err)
	}
	return nil
}

// Update rewrites index.yaml for an existing slug, keeping the creation time
// and external id already on disk.
func (s *Store) Update(ctx context.Context, record models.ContentRecord) error {
	if !validSlug(record.Slug) {
		return models.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readRecord(record.Slug)
	if errors.Is(err, fs.ErrNotExist) {
		return models.ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record.ExternalID = existing.ExternalID
	record.SourceURL = existing.SourceURL
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = &now
	return writeDocument(filepath.Join(s.root, record.Slug), toDocument(record))
}

// readAll returns the parsed records and the names of directories that have
// no index.yaml.
func (s *Store) readAll(ctx context.Context) ([]models.ContentRecord, []string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read content directory %s: %w", s.root, err)
	}

	records := make([]models.ContentRecord, 0, len(entries))
	var bare []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !entry.IsDir() {
			continue
		}
		record, err := s.readRecord(entry.Name())
		if errors.Is(err, fs.ErrNotExist) {
			bare = append(bare, entry.Name())
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		records = append(records, *record)
	}
	return records, bare, nil
}

func (s *Store) readRecord(slug string) (*models.ContentRecord, error) {
	path := filepath.Join(s.root, slug, indexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	record := fromDocument(slug, doc)
	return &record, nil
}

func (s *Store) removePartial(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to remove partially written recipe", "dir", dir, "error", err)
	}
}

// writeDocument replaces index.yaml atomically.
func writeDocument(dir string, doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", indexFile, err)
	}

	tmp, err := os.CreateTemp(dir, indexFile+".*")
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", indexFile, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", indexFile, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", indexFile, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", indexFile, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, indexFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save %s: %w", indexFile, err)
	}
	return nil
}

func toDocument(r models.ContentRecord) document {
	doc := document{
		Title:        r.Title,
		Description:  r.Description,
		YoutubeURL:   r.SourceURL,
		YoutubeID:    r.ExternalID,
		ThumbnailURL: r.ThumbnailURL,
		Difficulty:   string(r.Difficulty),
		PrepTime:     r.PrepTime,
		CookTime:     r.CookTime,
		TotalTime:    r.TotalTime,
		Servings:     r.Servings,
		Ingredients:  nonNil(r.Ingredients),
		Instructions: nonNil(r.Instructions),
		Tips:         nonNil(r.Tips),
		Variations:   nonNil(r.Variations),
		Rating:       r.Rating,
		RatingCount:  r.RatingCount,
		IsPublished:  r.IsPublished,
	}
	if !r.CreatedAt.IsZero() {
		doc.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
		doc.PublishedAt = r.CreatedAt.UTC().Format(dateLayout)
	}
	if r.PublishedAt != nil {
		doc.PublishedAt = r.PublishedAt.UTC().Format(dateLayout)
	}
	if r.UpdatedAt != nil {
		doc.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return doc
}

func fromDocument(slug string, doc document) models.ContentRecord {
	record := models.ContentRecord{
		Slug:         slug,
		ExternalID:   doc.YoutubeID,
		Title:        doc.Title,
		ThumbnailURL: doc.ThumbnailURL,
		SourceURL:    doc.YoutubeURL,
		RecipeDraft: models.RecipeDraft{
			Description:  doc.Description,
			Difficulty:   models.Difficulty(doc.Difficulty),
			PrepTime:     doc.PrepTime,
			CookTime:     doc.CookTime,
			TotalTime:    doc.TotalTime,
			Servings:     doc.Servings,
			Ingredients:  doc.Ingredients,
			Instructions: doc.Instructions,
			Tips:         doc.Tips,
			Variations:   doc.Variations,
		},
		IsPublished: doc.IsPublished,
		Rating:      doc.Rating,
		RatingCount: doc.RatingCount,
	}
	if t, err := time.Parse(time.RFC3339, doc.CreatedAt); err == nil {
		record.CreatedAt = t
	} else if t, err := time.Parse(dateLayout, doc.PublishedAt); err == nil {
		record.CreatedAt = t
	}
	if doc.IsPublished {
		if t, err := time.Parse(dateLayout, doc.PublishedAt); err == nil {
			record.PublishedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, doc.UpdatedAt); err == nil {
		record.UpdatedAt = &t
	}
	return record
}

func validSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
