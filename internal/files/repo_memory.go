package files

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
)

// MemoryRepo is an arena owning receipts, handovers, events and their
// counters behind a single lock.
type MemoryRepo struct {
	mu sync.RWMutex

	receiptSeq  int64
	handoverSeq int64
	eventSeq    int64

	receipts      map[int64]FileReceipt
	byTransaction map[string]int64
	handovers     map[int64][]FileHandover
	events        []LifecycleEvent
	eventsByFile  map[int64][]int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		receipts:      make(map[int64]FileReceipt),
		byTransaction: make(map[string]int64),
		handovers:     make(map[int64][]FileHandover),
		eventsByFile:  make(map[int64][]int),
	}
}

func (r *MemoryRepo) CreateReceipt(ctx context.Context, receipt FileReceipt, remark string) (FileReceipt, LifecycleEvent, error) {
	if err := ctx.Err(); err != nil {
		return FileReceipt{}, LifecycleEvent{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.receiptSeq++
	receipt.ID = r.receiptSeq
	receipt.TransactionID = FormatTransactionID(receipt.ReceivedAt.Year(), receipt.ID)
	receipt.ReceivedAt = receipt.ReceivedAt.UTC()
	receipt.Status = lifecycle.Initial
	receipt.LastUpdatedAt = receipt.ReceivedAt
	r.receipts[receipt.ID] = receipt
	r.byTransaction[receipt.TransactionID] = receipt.ID

	event := r.appendEventLocked(LifecycleEvent{
		FileID:     receipt.ID,
		Status:     lifecycle.Initial,
		UserID:     receipt.ReceivedByID,
		OccurredAt: receipt.ReceivedAt,
		Remarks:    remark,
	})
	return receipt, event, nil
}

func (r *MemoryRepo) GetReceipt(ctx context.Context, id int64) (FileReceipt, error) {
	if err := ctx.Err(); err != nil {
		return FileReceipt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	receipt, ok := r.receipts[id]
	if !ok {
		return FileReceipt{}, fileNotFound(id)
	}
	return receipt, nil
}

func (r *MemoryRepo) GetReceiptByTransactionID(ctx context.Context, transactionID string) (FileReceipt, error) {
	if err := ctx.Err(); err != nil {
		return FileReceipt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTransaction[strings.ToUpper(strings.TrimSpace(transactionID))]
	if !ok {
		return FileReceipt{}, apperr.NotFound("file %s", transactionID)
	}
	return r.receipts[id], nil
}

func (r *MemoryRepo) GetReceiptByCNR(ctx context.Context, cnr string) (FileReceipt, error) {
	if err := ctx.Err(); err != nil {
		return FileReceipt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		found FileReceipt
		ok    bool
	)
	for _, receipt := range r.receipts {
		if !strings.EqualFold(receipt.CNRNumber, cnr) {
			continue
		}
		if !ok || newerReceipt(receipt, found) {
			found, ok = receipt, true
		}
	}
	if !ok {
		return FileReceipt{}, apperr.NotFound("file with CNR %s", cnr)
	}
	return found, nil
}

func (r *MemoryRepo) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]FileReceipt, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]FileReceipt, 0, len(r.receipts))
	for _, receipt := range r.receipts {
		if filter.matches(receipt) {
			matched = append(matched, receipt)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return newerReceipt(matched[i], matched[j]) })
	total := len(matched)

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []FileReceipt{}, total, nil
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepo) UpdateReceiptDetails(ctx context.Context, id int64, patch DetailsPatch) (FileReceipt, error) {
	if err := ctx.Err(); err != nil {
		return FileReceipt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, ok := r.receipts[id]
	if !ok {
		return FileReceipt{}, fileNotFound(id)
	}
	patch.apply(&receipt)
	r.receipts[id] = receipt
	return receipt, nil
}

func (r *MemoryRepo) UpdateReceiptStatus(ctx context.Context, id int64, status lifecycle.Status, at time.Time) (FileReceipt, bool, error) {
	if err := ctx.Err(); err != nil {
		return FileReceipt{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, ok := r.setStatusLocked(id, status, at)
	return receipt, ok, nil
}

func (r *MemoryRepo) CreateHandover(ctx context.Context, handover FileHandover, event LifecycleEvent, guard Guard) (FileHandover, LifecycleEvent, FileReceipt, error) {
	if err := ctx.Err(); err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.receipts[handover.FileID]
	if !ok {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, fileNotFound(handover.FileID)
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return FileHandover{}, LifecycleEvent{}, FileReceipt{}, err
		}
	}

	r.handoverSeq++
	handover.ID = r.handoverSeq
	handover.HandoverAt = handover.HandoverAt.UTC()
	r.handovers[handover.FileID] = append(r.handovers[handover.FileID], handover)

	event.FileID = handover.FileID
	event.OccurredAt = event.OccurredAt.UTC()
	receipt, _ := r.setStatusLocked(handover.FileID, event.Status, event.OccurredAt)
	event = r.appendEventLocked(event)
	return handover, event, receipt, nil
}

func (r *MemoryRepo) ApplyTransition(ctx context.Context, event LifecycleEvent, guard Guard) (LifecycleEvent, FileReceipt, error) {
	if err := ctx.Err(); err != nil {
		return LifecycleEvent{}, FileReceipt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.receipts[event.FileID]
	if !ok {
		return LifecycleEvent{}, FileReceipt{}, fileNotFound(event.FileID)
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return LifecycleEvent{}, FileReceipt{}, err
		}
	}

	event.OccurredAt = event.OccurredAt.UTC()
	receipt, _ := r.setStatusLocked(event.FileID, event.Status, event.OccurredAt)
	event = r.appendEventLocked(event)
	return event, receipt, nil
}

func (r *MemoryRepo) CreateLifecycleEvent(ctx context.Context, event LifecycleEvent) (LifecycleEvent, error) {
	if err := ctx.Err(); err != nil {
		return LifecycleEvent{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.receipts[event.FileID]; !ok {
		return LifecycleEvent{}, fileNotFound(event.FileID)
	}
	event.OccurredAt = event.OccurredAt.UTC()
	return r.appendEventLocked(event), nil
}

func (r *MemoryRepo) ListLifecycleEvents(ctx context.Context, fileID int64) ([]LifecycleEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	idx := r.eventsByFile[fileID]
	out := make([]LifecycleEvent, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.events[i])
	}
	r.mu.RUnlock()
	sortEventsNewestFirst(out)
	return out, nil
}

func (r *MemoryRepo) ListRecentLifecycleEvents(ctx context.Context, limit int) ([]LifecycleEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]LifecycleEvent, len(r.events))
	copy(out, r.events)
	r.mu.RUnlock()
	sortEventsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListHandovers(ctx context.Context, fileID int64) ([]FileHandover, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]FileHandover, len(r.handovers[fileID]))
	copy(out, r.handovers[fileID])
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].HandoverAt.Equal(out[j].HandoverAt) {
			return out[i].HandoverAt.After(out[j].HandoverAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[lifecycle.Status]int)
	for _, receipt := range r.receipts {
		out[receipt.Status]++
	}
	return out, nil
}

func (r *MemoryRepo) ReceivedTimes(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []time.Time{}
	for _, receipt := range r.receipts {
		if inWindow(receipt.ReceivedAt, from, to) {
			out = append(out, receipt.ReceivedAt)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CountEvents(ctx context.Context, status lifecycle.Status, from, to time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ev := range r.events {
		if ev.Status == status && inWindow(ev.OccurredAt, from, to) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) setStatusLocked(id int64, status lifecycle.Status, at time.Time) (FileReceipt, bool) {
	receipt, ok := r.receipts[id]
	if !ok {
		return FileReceipt{}, false
	}
	receipt.Status = status
	if !at.IsZero() {
		receipt.LastUpdatedAt = at.UTC()
	}
	r.receipts[id] = receipt
	return receipt, true
}

func (r *MemoryRepo) appendEventLocked(event LifecycleEvent) LifecycleEvent {
	r.eventSeq++
	event.ID = r.eventSeq
	r.events = append(r.events, event)
	r.eventsByFile[event.FileID] = append(r.eventsByFile[event.FileID], len(r.events)-1)
	return event
}

func newerReceipt(a, b FileReceipt) bool {
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.After(b.ReceivedAt)
	}
	return a.ID > b.ID
}

func sortEventsNewestFirst(events []LifecycleEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.After(events[j].OccurredAt)
		}
		return events[i].ID > events[j].ID
	})
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func fileNotFound(id int64) error {
	return apperr.NotFound("file %d", id)
}

var _ Repo = (*MemoryRepo)(nil)
