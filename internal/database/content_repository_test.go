package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/emarutian/recipesync/internal/models"
	"github.com/lib/pq"
)

var recordColumns = []string{
	"slug", "external_id", "title", "description", "thumbnail_url", "source_url", "difficulty",
	"prep_time", "cook_time", "total_time", "servings", "ingredients", "instructions", "tips", "variations",
	"is_published", "rating", "rating_count", "created_at", "published_at", "updated_at", "revision",
}

func newMockRepository(t *testing.T) (*ContentRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewContentRepository(db), mock
}

func testRecord() models.ContentRecord {
	return models.ContentRecord{
		Slug:         "best-pancakes",
		ExternalID:   "abc123",
		Title:        "Best Pancakes",
		ThumbnailURL: "https://i.ytimg.com/vi/abc123/hqdefault.jpg",
		SourceURL:    "https://www.youtube.com/watch?v=abc123",
		RecipeDraft: models.RecipeDraft{
			Description:  "Fluffy.",
			Difficulty:   models.DifficultyEasy,
			Ingredients:  []string{"flour", "eggs"},
			Instructions: []string{"Mix", "Cook"},
		},
		CreatedAt: time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC),
	}
}

func TestContentRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT external_id, slug FROM content_records").
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "slug"}).
			AddRow("abc123", "best-pancakes").
			AddRow("def456", "tomato-soup"))

	entries, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[1].Slug != "tomato-soup" || entries[0].ExternalID != "abc123" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContentRepository_ListError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT external_id, slug FROM content_records").
		WillReturnError(errors.New("connection reset"))

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestContentRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)
	record := testRecord()

	mock.ExpectExec("INSERT INTO content_records").
		WithArgs(
			"best-pancakes", "abc123", "Best Pancakes", "Fluffy.",
			record.ThumbnailURL, record.SourceURL, "Easy",
			"", "", "", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, 0.0, 0, record.CreatedAt, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContentRepository_CreateSuffixedMaxLengthSlug(t *testing.T) {
	repo, mock := newMockRepository(t)
	record := testRecord()
	record.Slug = strings.Repeat("a", 60) + "-1"

	mock.ExpectExec("INSERT INTO content_records").
		WithArgs(
			record.Slug, "abc123", "Best Pancakes", "Fluffy.",
			record.ThumbnailURL, record.SourceURL, "Easy",
			"", "", "", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, 0.0, 0, record.CreatedAt, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContentRecordsSchema_SlugColumnUnbounded(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_create_content_records.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	// Collision suffixes extend a base slug that may already be at its cap.
	column := regexp.MustCompile(`(?m)^\s*slug\s+(\S+)`).FindStringSubmatch(string(data))
	if column == nil {
		t.Fatal("slug column not found in migration")
	}
	if column[1] != "TEXT" {
		t.Errorf("slug column type = %s, want TEXT", column[1])
	}
}

func TestContentRepository_CreateConstraintViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "slug taken", constraint: "content_records_pkey", want: models.ErrSlugExists},
		{name: "duplicate external id", constraint: "content_records_external_id_key", want: models.ErrDuplicateExternalID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectExec("INSERT INTO content_records").
				WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			err := repo.Create(context.Background(), testRecord())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("other failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec("INSERT INTO content_records").WillReturnError(errors.New("disk full"))

		err := repo.Create(context.Background(), testRecord())
		if err == nil || errors.Is(err, models.ErrSlugExists) || errors.Is(err, models.ErrDuplicateExternalID) {
			t.Errorf("unexpected classification: %v", err)
		}
	})
}

func TestContentRepository_Read(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
	published := created.Add(48 * time.Hour)

	mock.ExpectQuery("FROM content_records WHERE slug = \\$1").
		WithArgs("best-pancakes").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			"best-pancakes", "abc123", "Best Pancakes", "Fluffy.", "thumb", "url", "Medium",
			"10 mins", "15 mins", "25 mins", "4",
			`{"2 cups flour","2 eggs"}`, `{Whisk,Cook}`, `{}`, `{Blueberry}`,
			true, 4.5, 12, created, published, nil, 3,
		))

	record, err := repo.Read(context.Background(), "best-pancakes")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if record.Difficulty != models.DifficultyMedium || record.Revision != 3 || record.RatingCount != 12 {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(record.Ingredients) != 2 || record.Ingredients[0] != "2 cups flour" || len(record.Instructions) != 2 {
		t.Errorf("arrays not scanned: %+v", record.RecipeDraft)
	}
	if record.PublishedAt == nil || !record.PublishedAt.Equal(published) || record.UpdatedAt != nil {
		t.Errorf("unexpected timestamps: published=%v updated=%v", record.PublishedAt, record.UpdatedAt)
	}
}

func TestContentRepository_ReadNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM content_records WHERE slug").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	if _, err := repo.Read(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestContentRepository_Update(t *testing.T) {
	repo, mock := newMockRepository(t)
	record := testRecord()
	record.Title = "Perfect Pancakes"

	mock.ExpectExec("UPDATE content_records SET").
		WithArgs(
			"best-pancakes", "Perfect Pancakes", "Fluffy.", record.ThumbnailURL, "Easy",
			"", "", "", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, 0.0, 0, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), record); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	mock.ExpectExec("UPDATE content_records SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	record.Slug = "missing"
	if err := repo.Update(context.Background(), record); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
