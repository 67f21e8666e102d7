package scans

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"filetrack-backend/internal/shared/apperr"
)

var artifactRowColumns = []string{
	"id", "file_id", "uploaded_by_id", "file_name", "mime_type", "size_bytes",
	"sha256", "storage_key", "page_count", "pages_match", "created_at",
}

func TestPGRepoCreateReturnsStoredArtifact(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	id := "3f0c2a64-5d0e-4f7a-9a44-0a3b4f6a1c11"

	mock.ExpectQuery("INSERT INTO scan_artifacts").
		WithArgs(id, int64(1), int64(2), "scan.pdf", mimePDF, int64(900), "abc", "TRX-2024-00001/x-scan.pdf", 3, true, at).
		WillReturnRows(sqlmock.NewRows(artifactRowColumns).
			AddRow(id, int64(1), int64(2), "scan.pdf", mimePDF, int64(900), "abc", "TRX-2024-00001/x-scan.pdf", int64(3), true, at))

	saved, err := repo.Create(context.Background(), ScanArtifact{
		ID: id, FileID: 1, UploadedByID: 2, FileName: "scan.pdf", MimeType: mimePDF,
		SizeBytes: 900, SHA256: "abc", StorageKey: "TRX-2024-00001/x-scan.pdf", PageCount: 3, PagesMatch: true, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if saved.ID != id || saved.PageCount != 3 || !saved.PagesMatch {
		t.Fatalf("unexpected artifact: %+v", saved)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetRejectsMalformedID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	if _, err := repo.Get(context.Background(), "not-a-uuid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected: %v", err)
	}
}
