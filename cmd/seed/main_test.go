package main

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"filetrack-backend/internal/users"
)

const sample = `
adminPassword: changeme
users:
  - username: operator1
    password: secret1
    fullName: Scan Operator
    role: operator
    permission: edit
  - username: viewer
    password: secret2
    fullName: Read Only
`

func TestParseSeed(t *testing.T) {
	seed, err := parseSeed(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parseSeed: %v", err)
	}
	if seed.AdminPassword != "changeme" || len(seed.Users) != 2 {
		t.Fatalf("unexpected seed: %+v", seed)
	}
	if seed.Users[0].Role != "operator" || seed.Users[1].Permission != "" {
		t.Fatalf("unexpected users: %+v", seed.Users)
	}
}

func TestParseSeedRejectsUnknownKeys(t *testing.T) {
	if _, err := parseSeed(strings.NewReader("admin: x\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestParseSeedAcceptsEmptyFile(t *testing.T) {
	seed, err := parseSeed(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parseSeed: %v", err)
	}
	if len(seed.Users) != 0 {
		t.Fatalf("expected no users")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	seed, err := parseSeed(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parseSeed: %v", err)
	}
	svc := users.NewService(users.NewMemoryRepo())
	svc.Cost = bcrypt.MinCost
	ctx := context.Background()

	created, err := apply(ctx, svc, seed, "admin123")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 users created, got %d", created)
	}
	if _, err := svc.Authenticate(ctx, "admin", "changeme"); err != nil {
		t.Fatalf("admin should use seed password: %v", err)
	}

	created, err = apply(ctx, svc, seed, "admin123")
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no new users, got %d", created)
	}
}
