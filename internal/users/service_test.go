package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"filetrack-backend/internal/shared/apperr"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewMemoryRepo())
	svc.Cost = bcrypt.MinCost
	if _, _, err := svc.EnsureAdmin(context.Background(), "admin123"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	return svc
}

func TestEnsureAdminIsPrimordialAndIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "other")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if created {
		t.Fatalf("expected second call to reuse existing admin")
	}
	if admin.ID != PrimordialAdminID || admin.Role != RoleAdmin || admin.Permission != PermissionEdit {
		t.Fatalf("unexpected admin: %+v", admin)
	}
}

func TestCreateHashesPasswordAndAuthenticates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Username: "operator1", Password: "operator123", FullName: "Scan Operator"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.PasswordHash == "operator123" || user.PasswordHash == "" {
		t.Fatalf("expected bcrypt hash, got %q", user.PasswordHash)
	}
	if user.Role != RoleOperator || user.Permission != PermissionView || !user.Active {
		t.Fatalf("unexpected defaults: %+v", user)
	}

	got, err := svc.Authenticate(ctx, "OPERATOR1", "operator123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}
	if _, err := svc.Authenticate(ctx, "operator1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost", "operator123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestCreateRejectsDuplicateUsernameCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Username: "Admin", Password: "secret1", FullName: "Impostor"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := apperr.Fields(err)
	if len(fields) != 1 || fields[0].Field != "username" {
		t.Fatalf("expected username field error, got %+v", fields)
	}
}

func TestCreateValidatesFields(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), CreateInput{Username: "x", Password: "1", Role: "janitor", Permission: "all"})
	fields := apperr.Fields(err)
	if len(fields) != 5 {
		t.Fatalf("expected 5 field errors, got %+v", fields)
	}
}

func TestDeletePrimordialAdminForbidden(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, PrimordialAdminID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	admin, err := svc.GetByID(ctx, PrimordialAdminID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !admin.Active {
		t.Fatalf("admin must remain active")
	}
}

func TestDeleteIsSoft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Username: "operator2", Password: "operator123", FullName: "Second Operator"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := svc.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("deleted user should remain addressable: %v", err)
	}
	if got.Active {
		t.Fatalf("expected inactive user")
	}
	if _, err := svc.GetActive(ctx, user.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for inactive user, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "operator2", "operator123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive user must not log in, got %v", err)
	}
	active, _ := svc.List(ctx, false)
	for _, u := range active {
		if u.ID == user.ID {
			t.Fatalf("inactive user listed")
		}
	}
	if err := svc.Delete(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Username: "supervisor1", Password: "super123", FullName: "Shift Supervisor", Role: "supervisor", Permission: "edit"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := "Night Supervisor"
	updated, err := svc.Update(ctx, user.ID, UpdateInput{FullName: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FullName != name || updated.Role != RoleSupervisor || updated.Permission != PermissionEdit {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	demote := "operator"
	if _, err := svc.Update(ctx, PrimordialAdminID, UpdateInput{Role: &demote}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden demotion of primordial admin, got %v", err)
	}
}
