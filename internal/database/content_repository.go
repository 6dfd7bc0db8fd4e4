package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/emarutian/recipesync/internal/models"
	"github.com/lib/pq"
)

const (
	uniqueViolation      = "23505"
	constraintSlug       = "content_records_pkey"
	constraintExternalID = "content_records_external_id_key"
)

const contentRecordColumns = `slug, external_id, title, description, thumbnail_url, source_url, difficulty,
		prep_time, cook_time, total_time, servings, ingredients, instructions, tips, variations,
		is_published, rating, rating_count, created_at, published_at, updated_at, revision`

// ContentRepository stores recipe records in Postgres. Unique constraints on
// slug and external_id reject duplicates from overlapping runs.
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// List returns the inventory of every stored record.
func (r *ContentRepository) List(ctx context.Context) ([]models.InventoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT external_id, slug FROM content_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query content inventory: %w", err)
	}
	defer rows.Close()

	entries := []models.InventoryEntry{}
	for rows.Next() {
		var entry models.InventoryEntry
		if err := rows.Scan(&entry.ExternalID, &entry.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan inventory entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read content inventory: %w", err)
	}
	return entries, nil
}

// Read returns the record stored under slug.
func (r *ContentRepository) Read(ctx context.Context, slug string) (*models.ContentRecord, error) {
	query := `SELECT ` + contentRecordColumns + ` FROM content_records WHERE slug = $1`

	record, err := scanContentRecord(r.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe %s: %w", slug, err)
	}
	return record, nil
}

// ListRecords returns every record, newest first.
func (r *ContentRepository) ListRecords(ctx context.Context) ([]models.ContentRecord, error) {
	query := `SELECT ` + contentRecordColumns + ` FROM content_records ORDER BY created_at DESC, slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer rows.Close()

	records := []models.ContentRecord{}
	for rows.Next() {
		record, err := scanContentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipes: %w", err)
	}
	return records, nil
}

// Create inserts a new record at revision 1.
func (r *ContentRepository) Create(ctx context.Context, record models.ContentRecord) error {
	query := `
		INSERT INTO content_records (` + contentRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NULL, 1)
	`

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		record.Slug,
		record.ExternalID,
		record.Title,
		record.Description,
		record.ThumbnailURL,
		record.SourceURL,
		string(record.Difficulty),
		record.PrepTime,
		record.CookTime,
		record.TotalTime,
		record.Servings,
		pq.Array(nonNil(record.Ingredients)),
		pq.Array(nonNil(record.Instructions)),
		pq.Array(nonNil(record.Tips)),
		pq.Array(nonNil(record.Variations)),
		record.IsPublished,
		record.Rating,
		record.RatingCount,
		createdAt,
		nullTime(record.PublishedAt),
	)
	if err != nil {
		return classifyInsertError(record, err)
	}
	return nil
}

// Update replaces the editable fields of an existing record and bumps its
// revision. Slug, external id and creation time are never written.
func (r *ContentRepository) Update(ctx context.Context, record models.ContentRecord) error {
	query := `
		UPDATE content_records SET
			title = $2, description = $3, thumbnail_url = $4, difficulty = $5,
			prep_time = $6, cook_time = $7, total_time = $8, servings = $9,
			ingredients = $10, instructions = $11, tips = $12, variations = $13,
			is_published = $14, rating = $15, rating_count = $16, published_at = $17,
			updated_at = NOW(), revision = revision + 1
		WHERE slug = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		record.Slug,
		record.Title,
		record.Description,
		record.ThumbnailURL,
		string(record.Difficulty),
		record.PrepTime,
		record.CookTime,
		record.TotalTime,
		record.Servings,
		pq.Array(nonNil(record.Ingredients)),
		pq.Array(nonNil(record.Instructions)),
		pq.Array(nonNil(record.Tips)),
		pq.Array(nonNil(record.Variations)),
		record.IsPublished,
		record.Rating,
		record.RatingCount,
		nullTime(record.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update recipe %s: %w", record.Slug, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update recipe %s: %w", record.Slug, err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentRecord(row rowScanner) (*models.ContentRecord, error) {
	var (
		record      models.ContentRecord
		difficulty  string
		publishedAt sql.NullTime
		updatedAt   sql.NullTime
	)

	err := row.Scan(
		&record.Slug,
		&record.ExternalID,
		&record.Title,
		&record.Description,
		&record.ThumbnailURL,
		&record.SourceURL,
		&difficulty,
		&record.PrepTime,
		&record.CookTime,
		&record.TotalTime,
		&record.Servings,
		pq.Array(&record.Ingredients),
		pq.Array(&record.Instructions),
		pq.Array(&record.Tips),
		pq.Array(&record.Variations),
		&record.IsPublished,
		&record.Rating,
		&record.RatingCount,
		&record.CreatedAt,
		&publishedAt,
		&updatedAt,
		&record.Revision,
	)
	if err != nil {
		return nil, err
	}

	record.Difficulty = models.Difficulty(difficulty)
	if publishedAt.Valid {
		record.PublishedAt = &publishedAt.Time
	}
	if updatedAt.Valid {
		record.UpdatedAt = &updatedAt.Time
	}
	return &record, nil
}

func classifyInsertError(record models.ContentRecord, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		switch pqErr.Constraint {
		case constraintSlug:
			return fmt.Errorf("create %s: %w", record.Slug, models.ErrSlugExists)
		case constraintExternalID:
			return fmt.Errorf("create %s for %s: %w", record.Slug, record.ExternalID, models.ErrDuplicateExternalID)
		}
	}
	return fmt.Errorf("failed to create recipe %s: %w", record.Slug, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
