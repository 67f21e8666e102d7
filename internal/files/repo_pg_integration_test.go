package files

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/storage/db/dbtest"
	"filetrack-backend/internal/users"
)

func TestPGLifecycleEndToEnd(t *testing.T) {
	database := dbtest.Postgres(t)
	ctx := context.Background()

	userSvc := users.NewService(&users.PGRepo{DB: database})
	userSvc.Cost = bcrypt.MinCost
	admin, _, err := userSvc.EnsureAdmin(ctx, "admin123")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	operator, err := userSvc.Create(ctx, users.CreateInput{
		Username: "operator1", Password: "secret1", FullName: "Scan Operator", Role: "operator", Permission: "edit",
	})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}

	svc := NewService(&PGRepo{DB: database}, userSvc)
	svc.Location = time.UTC

	res, err := svc.Receive(ctx, ReceiveInput{
		CNRNumber: "DL12345", CaseType: "civil", CaseYear: 2023, CaseNumber: "CS/1/2023", PageCount: 40, ReceivedByID: admin.ID,
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if res.File.TransactionID != FormatTransactionID(res.File.ReceivedAt.Year(), res.File.ID) {
		t.Fatalf("unexpected transaction id %s", res.File.TransactionID)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Handover(ctx, HandoverInput{FileID: res.File.ID, FromUserID: admin.ID, ToUserID: operator.ID})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrInvalidState):
		default:
			t.Fatalf("unexpected handover error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one handover to win, got %d", succeeded)
	}

	history, err := svc.History(ctx, res.File.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	handovers, err := svc.Handovers(ctx, res.File.ID)
	if err != nil {
		t.Fatalf("Handovers: %v", err)
	}
	if len(history) != 2 || len(handovers) != 1 || history[0].Status != lifecycle.HandedOver {
		t.Fatalf("unexpected rows: %d events %d handovers", len(history), len(handovers))
	}

	if _, err := svc.Advance(ctx, TransitionInput{FileID: res.File.ID, Status: "qc_done", UserID: operator.ID}); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected skip to be rejected, got %v", err)
	}
	if _, err := svc.Advance(ctx, TransitionInput{FileID: res.File.ID, Status: "scanning_completed", UserID: operator.ID}); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	counts, err := svc.Repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[lifecycle.StatusScanningCompleted] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
