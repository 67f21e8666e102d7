package scans

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu        sync.RWMutex
	artifacts map[string]ScanArtifact
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{artifacts: make(map[string]ScanArtifact)}
}

func (r *MemoryRepo) Create(ctx context.Context, artifact ScanArtifact) (ScanArtifact, error) {
	if err := ctx.Err(); err != nil {
		return ScanArtifact{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	artifact.CreatedAt = artifact.CreatedAt.UTC()
	r.artifacts[artifact.ID] = artifact
	return artifact, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (ScanArtifact, error) {
	if err := ctx.Err(); err != nil {
		return ScanArtifact{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	artifact, ok := r.artifacts[id]
	if !ok {
		return ScanArtifact{}, artifactNotFound(id)
	}
	return artifact, nil
}

func (r *MemoryRepo) ListByFile(ctx context.Context, fileID int64) ([]ScanArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []ScanArtifact{}
	for _, artifact := range r.artifacts {
		if artifact.FileID == fileID {
			out = append(out, artifact)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
