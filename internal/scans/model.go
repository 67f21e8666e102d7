package scans

import "time"

// ScanArtifact is a digitized PDF attached to a file receipt.
type ScanArtifact struct {
	ID           string    `json:"id"`
	FileID       int64     `json:"fileId"`
	UploadedByID int64     `json:"uploadedById"`
	FileName     string    `json:"fileName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	SHA256       string    `json:"sha256"`
	StorageKey   string    `json:"-"`
	PageCount    int       `json:"pageCount"`
	PagesMatch   bool      `json:"pagesMatch"`
	CreatedAt    time.Time `json:"createdAt"`
}
