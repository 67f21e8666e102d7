package lifecycle

import (
	"fmt"
	"strings"

	"filetrack-backend/internal/shared/apperr"
)

// Status is a stage of the digitization pipeline.
type Status string

const (
	StatusReceived          Status = "received"
	StatusUnderScanning     Status = "under_scanning"
	StatusScanningCompleted Status = "scanning_completed"
	StatusQCPending         Status = "qc_pending"
	StatusQCDone            Status = "qc_done"
	StatusUploadPending     Status = "upload_pending"
	StatusUploadCompleted   Status = "upload_completed"
)

const (
	// Initial is assigned when a file is received.
	Initial = StatusReceived
	// PendingHandover is the only state a handover may start from.
	PendingHandover = StatusReceived
	// HandedOver is the state a successful handover moves the file to.
	HandedOver = StatusUnderScanning
)

var ordered = []Status{
	StatusReceived,
	StatusUnderScanning,
	StatusScanningCompleted,
	StatusQCPending,
	StatusQCDone,
	StatusUploadPending,
	StatusUploadCompleted,
}

var rank = func() map[Status]int {
	m := make(map[Status]int, len(ordered))
	for i, s := range ordered {
		m[s] = i
	}
	return m
}()

var defaultRemarks = map[Status]string{
	StatusReceived:          "File received for digitization",
	StatusUnderScanning:     "File handed over for scanning",
	StatusScanningCompleted: "Scanning completed",
	StatusQCPending:         "Sent for quality check",
	StatusQCDone:            "Quality check passed",
	StatusUploadPending:     "Queued for upload",
	StatusUploadCompleted:   "Upload completed",
}

// All returns the vocabulary in pipeline order.
func All() []Status {
	out := make([]Status, len(ordered))
	copy(out, ordered)
	return out
}

func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// Rank is the zero-based pipeline position, or -1 for unknown values.
func (s Status) Rank() int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

func (s Status) String() string {
	return string(s)
}

// AtLeast reports whether s is at or beyond other in the pipeline.
func (s Status) AtLeast(other Status) bool {
	return s.Valid() && other.Valid() && s.Rank() >= other.Rank()
}

// Next returns the immediate successor. ok is false for the terminal stage.
func (s Status) Next() (Status, bool) {
	r := s.Rank()
	if r < 0 || r+1 >= len(ordered) {
		return "", false
	}
	return ordered[r+1], true
}

// Parse validates a raw status value.
func Parse(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.Invalid("status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

// DefaultRemark returns the canned remark recorded when none is supplied.
func DefaultRemark(s Status) string {
	return defaultRemarks[s]
}

// OverrideRemark is recorded for administrative corrections without a remark.
func OverrideRemark(s Status) string {
	return fmt.Sprintf("Status corrected to %s by administrative override", s)
}
