package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
)

type PGRepo struct {
	DB *sql.DB
}

const receiptColumns = `id, transaction_id, cnr_number, case_type, case_year, case_number, page_count,
  party_names, priority, received_by_id, received_at, remarks, status, last_updated_at`

const eventColumns = `id, file_id, status, user_id, occurred_at, remarks`

const handoverColumns = `id, file_id, handover_by_id, handover_to_id, handover_mode, handover_at, remarks`

func (r *PGRepo) CreateReceipt(ctx context.Context, receipt FileReceipt, remark string) (created FileReceipt, event LifecycleEvent, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return FileReceipt{}, LifecycleEvent{}, fmt.Errorf("begin receipt tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id int64
	if err = tx.QueryRowContext(ctx, `SELECT nextval(pg_get_serial_sequence('file_receipts', 'id'))`).Scan(&id); err != nil {
		return FileReceipt{}, LifecycleEvent{}, fmt.Errorf("allocate receipt id: %w", err)
	}

	receipt.ID = id
	receipt.TransactionID = FormatTransactionID(receipt.ReceivedAt.Year(), id)
	receipt.ReceivedAt = receipt.ReceivedAt.UTC()
	receipt.Status = lifecycle.Initial
	receipt.LastUpdatedAt = receipt.ReceivedAt

	const insertReceipt = `
INSERT INTO file_receipts (id, transaction_id, cnr_number, case_type, case_year, case_number, page_count,
  party_names, priority, received_by_id, received_at, remarks, status, last_updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err = tx.ExecContext(ctx, insertReceipt,
		receipt.ID,
		receipt.TransactionID,
		receipt.CNRNumber,
		string(receipt.CaseType),
		receipt.CaseYear,
		receipt.CaseNumber,
		receipt.PageCount,
		nullableString(receipt.PartyNames),
		string(receipt.Priority),
		receipt.ReceivedByID,
		receipt.ReceivedAt,
		nullableString(receipt.Remarks),
		string(receipt.Status),
		receipt.LastUpdatedAt,
	); err != nil {
		return FileReceipt{}, LifecycleEvent{}, fmt.Errorf("insert receipt: %w", err)
	}

	event, err = insertEvent(ctx, tx, LifecycleEvent{
		FileID:     receipt.ID,
		Status:     lifecycle.Initial,
		UserID:     receipt.ReceivedByID,
		OccurredAt: receipt.ReceivedAt,
		Remarks:    remark,
	})
	if err != nil {
		return FileReceipt{}, LifecycleEvent{}, err
	}
	if err = tx.Commit(); err != nil {
		return FileReceipt{}, LifecycleEvent{}, fmt.Errorf("commit receipt: %w", err)
	}
	return receipt, event, nil
}

func (r *PGRepo) GetReceipt(ctx context.Context, id int64) (FileReceipt, error) {
	const query = `SELECT ` + receiptColumns + ` FROM file_receipts WHERE id = $1`
	receipt, err := scanReceipt(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, fileNotFound(id)
		}
		return FileReceipt{}, fmt.Errorf("get receipt: %w", err)
	}
	return receipt, nil
}

func (r *PGRepo) GetReceiptByTransactionID(ctx context.Context, transactionID string) (FileReceipt, error) {
	const query = `SELECT ` + receiptColumns + ` FROM file_receipts WHERE transaction_id = upper($1)`
	receipt, err := scanReceipt(r.DB.QueryRowContext(ctx, query, strings.TrimSpace(transactionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, apperr.NotFound("file %s", transactionID)
		}
		return FileReceipt{}, fmt.Errorf("get receipt by transaction: %w", err)
	}
	return receipt, nil
}

func (r *PGRepo) GetReceiptByCNR(ctx context.Context, cnr string) (FileReceipt, error) {
	const query = `
SELECT ` + receiptColumns + `
FROM file_receipts
WHERE lower(cnr_number) = lower($1)
ORDER BY received_at DESC, id DESC
LIMIT 1`
	receipt, err := scanReceipt(r.DB.QueryRowContext(ctx, query, cnr))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, apperr.NotFound("file with CNR %s", cnr)
		}
		return FileReceipt{}, fmt.Errorf("get receipt by cnr: %w", err)
	}
	return receipt, nil
}

func (r *PGRepo) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]FileReceipt, int, error) {
	where, args := receiptWhere(filter)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM file_receipts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count receipts: %w", err)
	}

	query := `SELECT ` + receiptColumns + ` FROM file_receipts` + where + ` ORDER BY received_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := []FileReceipt{}
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func receiptWhere(filter ReceiptFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.CaseType != "" {
		add("case_type = $%d", string(filter.CaseType))
	}
	if filter.Priority != "" {
		add("priority = $%d", string(filter.Priority))
	}
	if !filter.ReceivedFrom.IsZero() {
		add("received_at >= $%d", filter.ReceivedFrom.UTC())
	}
	if !filter.ReceivedTo.IsZero() {
		add("received_at < $%d", filter.ReceivedTo.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PGRepo) UpdateReceiptDetails(ctx context.Context, id int64, patch DetailsPatch) (FileReceipt, error) {
	const query = `
UPDATE file_receipts SET
  cnr_number = COALESCE($2, cnr_number),
  case_type = COALESCE($3, case_type),
  case_year = COALESCE($4, case_year),
  case_number = COALESCE($5, case_number),
  page_count = COALESCE($6, page_count),
  party_names = COALESCE($7, party_names),
  priority = COALESCE($8, priority),
  remarks = COALESCE($9, remarks)
WHERE id = $1
RETURNING ` + receiptColumns
	var caseType, priority any
	if patch.CaseType != nil {
		caseType = string(*patch.CaseType)
	}
	if patch.Priority != nil {
		priority = string(*patch.Priority)
	}
	receipt, err := scanReceipt(r.DB.QueryRowContext(ctx, query,
		id,
		ptrValue(patch.CNRNumber),
		caseType,
		ptrValue(patch.CaseYear),
		ptrValue(patch.CaseNumber),
		ptrValue(patch.PageCount),
		ptrValue(patch.PartyNames),
		priority,
		ptrValue(patch.Remarks),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, fileNotFound(id)
		}
		return FileReceipt{}, fmt.Errorf("update receipt: %w", err)
	}
	return receipt, nil
}

func (r *PGRepo) UpdateReceiptStatus(ctx context.Context, id int64, status lifecycle.Status, at time.Time) (FileReceipt, bool, error) {
	receipt, err := updateStatus(ctx, r.DB, id, status, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, false, nil
		}
		return FileReceipt{}, false, err
	}
	return receipt, true, nil
}

func (r *PGRepo) CreateHandover(ctx context.Context, handover FileHandover, event LifecycleEvent, guard Guard) (saved FileHandover, ev LifecycleEvent, receipt FileReceipt, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, fmt.Errorf("begin handover tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	current, err := lockReceipt(ctx, tx, handover.FileID)
	if err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, err
	}
	if guard != nil {
		if err = guard(current); err != nil {
			return FileHandover{}, LifecycleEvent{}, FileReceipt{}, err
		}
	}

	const insertHandover = `
INSERT INTO file_handovers (file_id, handover_by_id, handover_to_id, handover_mode, handover_at, remarks)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	handover.HandoverAt = handover.HandoverAt.UTC()
	if err = tx.QueryRowContext(ctx, insertHandover,
		handover.FileID,
		handover.HandoverByID,
		handover.HandoverToID,
		string(handover.Mode),
		handover.HandoverAt,
		nullableString(handover.Remarks),
	).Scan(&handover.ID); err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, fmt.Errorf("insert handover: %w", err)
	}

	event.FileID = handover.FileID
	receipt, err = updateStatus(ctx, tx, handover.FileID, event.Status, event.OccurredAt)
	if err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, err
	}
	ev, err = insertEvent(ctx, tx, event)
	if err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, err
	}
	if err = tx.Commit(); err != nil {
		return FileHandover{}, LifecycleEvent{}, FileReceipt{}, fmt.Errorf("commit handover: %w", err)
	}
	return handover, ev, receipt, nil
}

func (r *PGRepo) ApplyTransition(ctx context.Context, event LifecycleEvent, guard Guard) (ev LifecycleEvent, receipt FileReceipt, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return LifecycleEvent{}, FileReceipt{}, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	current, err := lockReceipt(ctx, tx, event.FileID)
	if err != nil {
		return LifecycleEvent{}, FileReceipt{}, err
	}
	if guard != nil {
		if err = guard(current); err != nil {
			return LifecycleEvent{}, FileReceipt{}, err
		}
	}

	receipt, err = updateStatus(ctx, tx, event.FileID, event.Status, event.OccurredAt)
	if err != nil {
		return LifecycleEvent{}, FileReceipt{}, err
	}
	ev, err = insertEvent(ctx, tx, event)
	if err != nil {
		return LifecycleEvent{}, FileReceipt{}, err
	}
	if err = tx.Commit(); err != nil {
		return LifecycleEvent{}, FileReceipt{}, fmt.Errorf("commit transition: %w", err)
	}
	return ev, receipt, nil
}

func (r *PGRepo) CreateLifecycleEvent(ctx context.Context, event LifecycleEvent) (LifecycleEvent, error) {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM file_receipts WHERE id = $1)`, event.FileID).Scan(&exists); err != nil {
		return LifecycleEvent{}, fmt.Errorf("check receipt: %w", err)
	}
	if !exists {
		return LifecycleEvent{}, fileNotFound(event.FileID)
	}
	return insertEvent(ctx, r.DB, event)
}

func (r *PGRepo) ListLifecycleEvents(ctx context.Context, fileID int64) ([]LifecycleEvent, error) {
	const query = `
SELECT ` + eventColumns + `
FROM lifecycle_events
WHERE file_id = $1
ORDER BY occurred_at DESC, id DESC`
	return r.queryEvents(ctx, query, fileID)
}

func (r *PGRepo) ListRecentLifecycleEvents(ctx context.Context, limit int) ([]LifecycleEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
SELECT ` + eventColumns + `
FROM lifecycle_events
ORDER BY occurred_at DESC, id DESC
LIMIT $1`
	return r.queryEvents(ctx, query, limit)
}

func (r *PGRepo) queryEvents(ctx context.Context, query string, args ...any) ([]LifecycleEvent, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []LifecycleEvent{}
	for rows.Next() {
		var ev LifecycleEvent
		var status string
		var remarks sql.NullString
		if err := rows.Scan(&ev.ID, &ev.FileID, &status, &ev.UserID, &ev.OccurredAt, &remarks); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Status = lifecycle.Status(status)
		if remarks.Valid {
			ev.Remarks = remarks.String
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListHandovers(ctx context.Context, fileID int64) ([]FileHandover, error) {
	const query = `
SELECT ` + handoverColumns + `
FROM file_handovers
WHERE file_id = $1
ORDER BY handover_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("list handovers: %w", err)
	}
	defer rows.Close()

	out := []FileHandover{}
	for rows.Next() {
		var h FileHandover
		var mode string
		var remarks sql.NullString
		if err := rows.Scan(&h.ID, &h.FileID, &h.HandoverByID, &h.HandoverToID, &mode, &h.HandoverAt, &remarks); err != nil {
			return nil, fmt.Errorf("scan handover: %w", err)
		}
		h.Mode = HandoverMode(mode)
		if remarks.Valid {
			h.Remarks = remarks.String
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM file_receipts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[lifecycle.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[lifecycle.Status(status)] = n
	}
	return out, rows.Err()
}

func (r *PGRepo) ReceivedTimes(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := `SELECT received_at FROM file_receipts WHERE received_at >= $1`
	args := []any{from.UTC()}
	if !to.IsZero() {
		query += ` AND received_at < $2`
		args = append(args, to.UTC())
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("received times: %w", err)
	}
	defer rows.Close()

	out := []time.Time{}
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan received_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountEvents(ctx context.Context, status lifecycle.Status, from, to time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
SELECT count(*) FROM lifecycle_events
WHERE status = $1 AND occurred_at >= $2 AND occurred_at < $3`, string(status), from.UTC(), to.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lockReceipt(ctx context.Context, tx *sql.Tx, id int64) (FileReceipt, error) {
	const query = `SELECT ` + receiptColumns + ` FROM file_receipts WHERE id = $1 FOR UPDATE`
	receipt, err := scanReceipt(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, fileNotFound(id)
		}
		return FileReceipt{}, fmt.Errorf("lock receipt: %w", err)
	}
	return receipt, nil
}

func updateStatus(ctx context.Context, q execQuerier, id int64, status lifecycle.Status, at time.Time) (FileReceipt, error) {
	const query = `
UPDATE file_receipts SET status = $2, last_updated_at = $3
WHERE id = $1
RETURNING ` + receiptColumns
	if at.IsZero() {
		at = time.Now()
	}
	receipt, err := scanReceipt(q.QueryRowContext(ctx, query, id, string(status), at.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileReceipt{}, err
		}
		return FileReceipt{}, fmt.Errorf("update status: %w", err)
	}
	return receipt, nil
}

func insertEvent(ctx context.Context, q execQuerier, event LifecycleEvent) (LifecycleEvent, error) {
	const query = `
INSERT INTO lifecycle_events (file_id, status, user_id, occurred_at, remarks)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	event.OccurredAt = event.OccurredAt.UTC()
	if err := q.QueryRowContext(ctx, query,
		event.FileID,
		string(event.Status),
		event.UserID,
		event.OccurredAt,
		nullableString(event.Remarks),
	).Scan(&event.ID); err != nil {
		return LifecycleEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (FileReceipt, error) {
	var rec FileReceipt
	var caseType, priority, status string
	var partyNames, remarks sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.TransactionID,
		&rec.CNRNumber,
		&caseType,
		&rec.CaseYear,
		&rec.CaseNumber,
		&rec.PageCount,
		&partyNames,
		&priority,
		&rec.ReceivedByID,
		&rec.ReceivedAt,
		&remarks,
		&status,
		&rec.LastUpdatedAt,
	)
	if err != nil {
		return FileReceipt{}, err
	}
	rec.CaseType = CaseType(caseType)
	rec.Priority = Priority(priority)
	rec.Status = lifecycle.Status(status)
	if partyNames.Valid {
		rec.PartyNames = partyNames.String
	}
	if remarks.Valid {
		rec.Remarks = remarks.String
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func ptrValue[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

var _ Repo = (*PGRepo)(nil)
