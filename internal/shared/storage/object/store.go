package object

import (
	"context"
	"io"
)

// ObjectStore saves and retrieves scanned documents. Keys are relative and
// grouped under a namespace (the owning file's transaction id).
type ObjectStore interface {
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
