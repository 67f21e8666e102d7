package scans

import (
	"context"

	"filetrack-backend/internal/shared/apperr"
)

type Repo interface {
	Create(ctx context.Context, artifact ScanArtifact) (ScanArtifact, error)
	Get(ctx context.Context, id string) (ScanArtifact, error)
	// ListByFile returns the file's artifacts newest first.
	ListByFile(ctx context.Context, fileID int64) ([]ScanArtifact, error)
}

func artifactNotFound(id string) error {
	return apperr.NotFound("scan %s", id)
}
