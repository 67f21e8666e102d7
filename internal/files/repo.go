package files

import (
	"context"
	"time"

	"filetrack-backend/internal/lifecycle"
)

// Repo is the entity store for receipts, handovers and lifecycle events.
//
// Multi-entity writes (CreateReceipt, CreateHandover, ApplyTransition) are
// all-or-nothing: the guard runs against the current receipt inside the same
// unit, so a rejected precondition leaves no partial rows behind.
type Repo interface {
	// CreateReceipt assigns the id and transaction id, stores the receipt in
	// the initial state and appends its first event.
	CreateReceipt(ctx context.Context, receipt FileReceipt, remark string) (FileReceipt, LifecycleEvent, error)
	GetReceipt(ctx context.Context, id int64) (FileReceipt, error)
	GetReceiptByTransactionID(ctx context.Context, transactionID string) (FileReceipt, error)
	// GetReceiptByCNR returns the most recently received file with the number.
	GetReceiptByCNR(ctx context.Context, cnr string) (FileReceipt, error)
	// ListReceipts returns one page ordered by received_at DESC, id DESC and
	// the total number of matching receipts.
	ListReceipts(ctx context.Context, filter ReceiptFilter) ([]FileReceipt, int, error)
	UpdateReceiptDetails(ctx context.Context, id int64, patch DetailsPatch) (FileReceipt, error)
	// UpdateReceiptStatus is a bare field write; found is false for unknown ids.
	UpdateReceiptStatus(ctx context.Context, id int64, status lifecycle.Status, at time.Time) (FileReceipt, bool, error)

	CreateHandover(ctx context.Context, handover FileHandover, event LifecycleEvent, guard Guard) (FileHandover, LifecycleEvent, FileReceipt, error)
	ApplyTransition(ctx context.Context, event LifecycleEvent, guard Guard) (LifecycleEvent, FileReceipt, error)
	// CreateLifecycleEvent appends without touching the receipt.
	CreateLifecycleEvent(ctx context.Context, event LifecycleEvent) (LifecycleEvent, error)

	ListLifecycleEvents(ctx context.Context, fileID int64) ([]LifecycleEvent, error)
	ListRecentLifecycleEvents(ctx context.Context, limit int) ([]LifecycleEvent, error)
	ListHandovers(ctx context.Context, fileID int64) ([]FileHandover, error)

	CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error)
	// ReceivedTimes returns receipt timestamps in [from, to). A zero to
	// leaves the window open-ended.
	ReceivedTimes(ctx context.Context, from, to time.Time) ([]time.Time, error)
	// CountEvents counts events of status in [from, to).
	CountEvents(ctx context.Context, status lifecycle.Status, from, to time.Time) (int, error)
}
