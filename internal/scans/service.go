package scans

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"filetrack-backend/internal/files"
	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/metrics"
	"filetrack-backend/internal/shared/storage/object"
	"filetrack-backend/internal/shared/telemetry"
	"filetrack-backend/internal/shared/util"
)

const mimePDF = "application/pdf"

// FileReader loads the receipt a scan belongs to.
type FileReader interface {
	Get(ctx context.Context, id int64) (files.FileReceipt, error)
}

type Service struct {
	Repo  Repo
	Files FileReader
	Store object.ObjectStore
	Now   func() time.Time
}

func NewService(repo Repo, fileReader FileReader, store object.ObjectStore) *Service {
	return &Service{Repo: repo, Files: fileReader, Store: store}
}

type UploadInput struct {
	FileID     int64
	UploaderID int64
	FileName   string
	Data       []byte
}

type UploadResult struct {
	Artifact      ScanArtifact `json:"artifact"`
	ExpectedPages int          `json:"expectedPages"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Upload stores a scanned PDF for a file that has finished scanning. The
// file's status is left untouched.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	receipt, err := s.Files.Get(ctx, in.FileID)
	if err != nil {
		return UploadResult{}, err
	}
	if !receipt.Status.AtLeast(lifecycle.StatusScanningCompleted) {
		return UploadResult{}, apperr.InvalidState("file is %s; scans are accepted from %s onwards", receipt.Status, lifecycle.StatusScanningCompleted)
	}

	name := strings.TrimSpace(in.FileName)
	if name == "" {
		name = receipt.TransactionID + ".pdf"
	}
	if _, err := util.SanitizeFileName(name); err != nil {
		return UploadResult{}, apperr.Invalid("file", "invalid file name")
	}
	pages, err := CountPages(in.Data)
	if err != nil {
		return UploadResult{}, err
	}

	key, size, _, err := s.Store.Save(ctx, receipt.TransactionID, name, bytes.NewReader(in.Data))
	if err != nil {
		return UploadResult{}, fmt.Errorf("store scan: %w", err)
	}

	artifact, err := s.Repo.Create(ctx, ScanArtifact{
		ID:           uuid.NewString(),
		FileID:       receipt.ID,
		UploadedByID: in.UploaderID,
		FileName:     name,
		MimeType:     mimePDF,
		SizeBytes:    size,
		SHA256:       util.SHA256Hex(in.Data),
		StorageKey:   key,
		PageCount:    pages,
		PagesMatch:   pages == receipt.PageCount,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if delErr := s.Store.Delete(ctx, key); delErr != nil {
			telemetry.Error("scans.cleanup_failed", map[string]any{
				"file_id":     receipt.ID,
				"storage_key": key,
				"error":       delErr,
			})
		}
		return UploadResult{}, err
	}

	metrics.ObserveScanUpload(size, artifact.PagesMatch)
	fields := map[string]any{
		"file_id":        receipt.ID,
		"transaction_id": receipt.TransactionID,
		"scan_id":        artifact.ID,
		"pages":          pages,
		"expected_pages": receipt.PageCount,
		"size_bytes":     size,
	}
	if artifact.PagesMatch {
		telemetry.Info("scans.uploaded", fields)
	} else {
		telemetry.Warn("scans.page_mismatch", fields)
	}
	return UploadResult{Artifact: artifact, ExpectedPages: receipt.PageCount}, nil
}

// CountPages validates data as a PDF and returns its page count.
func CountPages(data []byte) (pages int, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, apperr.Invalid("file", "must be a PDF document")
	}
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, apperr.Invalid("file", "unreadable PDF document")
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, apperr.Invalid("file", "unreadable PDF document")
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return 0, apperr.Invalid("file", "PDF document has no pages")
	}
	return pages, nil
}

func (s *Service) List(ctx context.Context, fileID int64) ([]ScanArtifact, error) {
	if _, err := s.Files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	return s.Repo.ListByFile(ctx, fileID)
}

// Open returns the artifact and a reader over its stored bytes. Callers close the reader.
func (s *Service) Open(ctx context.Context, id string) (ScanArtifact, io.ReadCloser, error) {
	artifact, err := s.Repo.Get(ctx, id)
	if err != nil {
		return ScanArtifact{}, nil, err
	}
	rc, err := s.Store.Open(ctx, artifact.StorageKey)
	if err != nil {
		return ScanArtifact{}, nil, fmt.Errorf("open scan: %w", err)
	}
	return artifact, rc, nil
}
