package files

import (
	"fmt"
	"time"

	"filetrack-backend/internal/lifecycle"
)

type CaseType string

const (
	CaseCivil    CaseType = "civil"
	CaseCriminal CaseType = "criminal"
	CaseWrit     CaseType = "writ"
	CaseAppeal   CaseType = "appeal"
	CaseRevision CaseType = "revision"
	CaseOther    CaseType = "other"
)

func (c CaseType) Valid() bool {
	switch c {
	case CaseCivil, CaseCriminal, CaseWrit, CaseAppeal, CaseRevision, CaseOther:
		return true
	}
	return false
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

type HandoverMode string

const (
	ModeManual     HandoverMode = "manual"
	ModeBarcode    HandoverMode = "barcode"
	ModeElectronic HandoverMode = "electronic"
)

func (m HandoverMode) Valid() bool {
	return m == ModeManual || m == ModeBarcode || m == ModeElectronic
}

// FileReceipt is a physical case file accepted into the pipeline.
type FileReceipt struct {
	ID            int64            `json:"id"`
	TransactionID string           `json:"transactionId"`
	CNRNumber     string           `json:"cnrNumber"`
	CaseType      CaseType         `json:"caseType"`
	CaseYear      int              `json:"caseYear"`
	CaseNumber    string           `json:"caseNumber"`
	PageCount     int              `json:"pageCount"`
	PartyNames    string           `json:"partyNames,omitempty"`
	Priority      Priority         `json:"priority"`
	ReceivedByID  int64            `json:"receivedById"`
	ReceivedAt    time.Time        `json:"receivedAt"`
	Remarks       string           `json:"remarks,omitempty"`
	Status        lifecycle.Status `json:"status"`
	LastUpdatedAt time.Time        `json:"lastUpdatedAt"`
}

type FileHandover struct {
	ID           int64        `json:"id"`
	FileID       int64        `json:"fileId"`
	HandoverByID int64        `json:"handoverById"`
	HandoverToID int64        `json:"handoverToId"`
	Mode         HandoverMode `json:"handoverMode"`
	HandoverAt   time.Time    `json:"handoverAt"`
	Remarks      string       `json:"remarks,omitempty"`
}

// LifecycleEvent is one append-only status record.
type LifecycleEvent struct {
	ID         int64            `json:"id"`
	FileID     int64            `json:"fileId"`
	Status     lifecycle.Status `json:"status"`
	UserID     int64            `json:"userId"`
	OccurredAt time.Time        `json:"timestamp"`
	Remarks    string           `json:"remarks,omitempty"`
}

// ReceiptFilter narrows ListReceipts. Zero values match everything.
type ReceiptFilter struct {
	Status       lifecycle.Status
	CaseType     CaseType
	Priority     Priority
	ReceivedFrom time.Time
	ReceivedTo   time.Time
	Limit        int
	Offset       int
}

func (f ReceiptFilter) matches(r FileReceipt) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.CaseType != "" && r.CaseType != f.CaseType {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if !f.ReceivedFrom.IsZero() && r.ReceivedAt.Before(f.ReceivedFrom) {
		return false
	}
	if !f.ReceivedTo.IsZero() && !r.ReceivedAt.Before(f.ReceivedTo) {
		return false
	}
	return true
}

// DetailsPatch edits case metadata. Status and transaction id are never patched.
type DetailsPatch struct {
	CNRNumber  *string   `json:"cnrNumber"`
	CaseType   *CaseType `json:"caseType"`
	CaseYear   *int      `json:"caseYear"`
	CaseNumber *string   `json:"caseNumber"`
	PageCount  *int      `json:"pageCount"`
	PartyNames *string   `json:"partyNames"`
	Priority   *Priority `json:"priority"`
	Remarks    *string   `json:"remarks"`
}

func (p DetailsPatch) apply(r *FileReceipt) {
	if p.CNRNumber != nil {
		r.CNRNumber = *p.CNRNumber
	}
	if p.CaseType != nil {
		r.CaseType = *p.CaseType
	}
	if p.CaseYear != nil {
		r.CaseYear = *p.CaseYear
	}
	if p.CaseNumber != nil {
		r.CaseNumber = *p.CaseNumber
	}
	if p.PageCount != nil {
		r.PageCount = *p.PageCount
	}
	if p.PartyNames != nil {
		r.PartyNames = *p.PartyNames
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Remarks != nil {
		r.Remarks = *p.Remarks
	}
}

// Guard inspects the locked current receipt before a transition is written.
// A non-nil error aborts the unit with no writes.
type Guard func(current FileReceipt) error

// FormatTransactionID renders the human-facing receipt identifier.
func FormatTransactionID(year int, id int64) string {
	return fmt.Sprintf("TRX-%d-%05d", year, id)
}
