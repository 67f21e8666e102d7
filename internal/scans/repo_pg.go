package scans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type PGRepo struct {
	DB *sql.DB
}

const artifactColumns = `id, file_id, uploaded_by_id, file_name, mime_type, size_bytes, sha256, storage_key, page_count, pages_match, created_at`

func (r *PGRepo) Create(ctx context.Context, artifact ScanArtifact) (ScanArtifact, error) {
	const query = `
INSERT INTO scan_artifacts (id, file_id, uploaded_by_id, file_name, mime_type, size_bytes, sha256, storage_key, page_count, pages_match, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + artifactColumns
	saved, err := scanArtifact(r.DB.QueryRowContext(ctx, query,
		artifact.ID,
		artifact.FileID,
		artifact.UploadedByID,
		artifact.FileName,
		artifact.MimeType,
		artifact.SizeBytes,
		artifact.SHA256,
		artifact.StorageKey,
		artifact.PageCount,
		artifact.PagesMatch,
		artifact.CreatedAt.UTC(),
	))
	if err != nil {
		return ScanArtifact{}, fmt.Errorf("insert scan artifact: %w", err)
	}
	return saved, nil
}

func (r *PGRepo) Get(ctx context.Context, id string) (ScanArtifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ScanArtifact{}, artifactNotFound(id)
	}
	const query = `SELECT ` + artifactColumns + ` FROM scan_artifacts WHERE id = $1`
	artifact, err := scanArtifact(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScanArtifact{}, artifactNotFound(id)
		}
		return ScanArtifact{}, fmt.Errorf("get scan artifact: %w", err)
	}
	return artifact, nil
}

func (r *PGRepo) ListByFile(ctx context.Context, fileID int64) ([]ScanArtifact, error) {
	const query = `
SELECT ` + artifactColumns + `
FROM scan_artifacts
WHERE file_id = $1
ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("list scan artifacts: %w", err)
	}
	defer rows.Close()

	out := []ScanArtifact{}
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		out = append(out, artifact)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (ScanArtifact, error) {
	var a ScanArtifact
	err := row.Scan(
		&a.ID,
		&a.FileID,
		&a.UploadedByID,
		&a.FileName,
		&a.MimeType,
		&a.SizeBytes,
		&a.SHA256,
		&a.StorageKey,
		&a.PageCount,
		&a.PagesMatch,
		&a.CreatedAt,
	)
	return a, err
}

var _ Repo = (*PGRepo)(nil)
