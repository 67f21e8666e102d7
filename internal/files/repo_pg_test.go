package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
)

var receiptRowColumns = []string{
	"id", "transaction_id", "cnr_number", "case_type", "case_year", "case_number", "page_count",
	"party_names", "priority", "received_by_id", "received_at", "remarks", "status", "last_updated_at",
}

func receiptRow(id int64, status string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(receiptRowColumns).AddRow(
		id, FormatTransactionID(at.Year(), id), "DL12345", "civil", int64(2023), "CS/1/2023", int64(12),
		nil, "normal", int64(1), at, nil, status, at,
	)
}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateReceiptAllocatesTransactionID(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(1)))
	mock.ExpectExec("INSERT INTO file_receipts").
		WithArgs(int64(1), "TRX-2024-00001", "DL12345", "civil", 2023, "CS/1/2023", 12,
			nil, "normal", int64(1), at, nil, "received", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO lifecycle_events").
		WithArgs(int64(1), "received", int64(1), at, receiveRemark).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	receipt, event, err := repo.CreateReceipt(context.Background(), FileReceipt{
		CNRNumber:    "DL12345",
		CaseType:     CaseCivil,
		CaseYear:     2023,
		CaseNumber:   "CS/1/2023",
		PageCount:    12,
		Priority:     PriorityNormal,
		ReceivedByID: 1,
		ReceivedAt:   at,
	}, receiveRemark)
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if receipt.TransactionID != "TRX-2024-00001" || receipt.Status != lifecycle.Initial {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if event.ID != 1 || event.FileID != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoApplyTransitionRollsBackWhenGuardRejects(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM file_receipts WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(receiptRow(1, "received", at))
	mock.ExpectRollback()

	_, _, err := repo.ApplyTransition(context.Background(), LifecycleEvent{
		FileID: 1, Status: lifecycle.StatusQCPending, UserID: 2, OccurredAt: at,
	}, func(current FileReceipt) error {
		return lifecycle.CheckForward(current.Status, lifecycle.StatusQCPending)
	})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoApplyTransitionCommitsStatusAndEvent(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	later := at.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(receiptRow(1, "under_scanning", at))
	mock.ExpectQuery("UPDATE file_receipts SET status").
		WithArgs(int64(1), "scanning_completed", later).
		WillReturnRows(receiptRow(1, "scanning_completed", later))
	mock.ExpectQuery("INSERT INTO lifecycle_events").
		WithArgs(int64(1), "scanning_completed", int64(2), later, "Scanning completed").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectCommit()

	event, receipt, err := repo.ApplyTransition(context.Background(), LifecycleEvent{
		FileID: 1, Status: lifecycle.StatusScanningCompleted, UserID: 2, OccurredAt: later, Remarks: "Scanning completed",
	}, nil)
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if event.ID != 5 || receipt.Status != lifecycle.StatusScanningCompleted {
		t.Fatalf("unexpected result: %+v %+v", event, receipt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateHandoverMissingFile(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(receiptRowColumns))
	mock.ExpectRollback()

	_, _, _, err := repo.CreateHandover(context.Background(),
		FileHandover{FileID: 9, HandoverByID: 1, HandoverToID: 2, Mode: ModeManual},
		LifecycleEvent{Status: lifecycle.HandedOver, UserID: 1},
		nil,
	)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListReceiptsBuildsFilter(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM file_receipts WHERE status = \\$1 AND priority = \\$2").
		WithArgs("received", "urgent").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("WHERE status = \\$1 AND priority = \\$2 ORDER BY received_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("received", "urgent", 1, 2).
		WillReturnRows(receiptRow(1, "received", at))

	items, total, err := repo.ListReceipts(context.Background(), ReceiptFilter{
		Status: lifecycle.StatusReceived, Priority: PriorityUrgent, Limit: 1, Offset: 2,
	})
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if total != 3 || len(items) != 1 {
		t.Fatalf("unexpected page: total=%d items=%d", total, len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCountByStatus(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT status, count\\(\\*\\) FROM file_receipts GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("received", 4).
			AddRow("upload_completed", 2))

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[lifecycle.StatusReceived] != 4 || counts[lifecycle.StatusUploadCompleted] != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestPGRepoReceivedTimesOpenEnded(t *testing.T) {
	repo, mock := newMock(t)
	from := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	later := from.Add(36 * time.Hour)

	mock.ExpectQuery(`received_at >= \$1$`).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"received_at"}).AddRow(from.Add(time.Hour)).AddRow(later))

	times, err := repo.ReceivedTimes(context.Background(), from, time.Time{})
	if err != nil {
		t.Fatalf("ReceivedTimes: %v", err)
	}
	if len(times) != 2 || !times[1].Equal(later) {
		t.Fatalf("unexpected times: %v", times)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
