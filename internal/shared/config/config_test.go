package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "ENV", "OBJECT_STORE", "TOKEN_TTL", "LOGIN_RATE_PER_MINUTE", "DATABASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %s", cfg.Env)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %s", cfg.ObjectStoreType)
	}
	if cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("expected 12h ttl, got %s", cfg.TokenTTL)
	}
	if cfg.LoginRatePerMinute != 10 {
		t.Fatalf("expected login rate 10, got %d", cfg.LoginRatePerMinute)
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "PORT=9090\nREPORTS_TIMEZONE=\"Asia/Kolkata\"\nENV=prod\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("REPORTS_TIMEZONE", "")
	t.Setenv("ENV", "")
	os.Unsetenv("REPORTS_TIMEZONE")
	os.Unsetenv("ENV")

	cfg := Load()
	if cfg.Port != "7070" {
		t.Fatalf("expected env var to win, got %s", cfg.Port)
	}
	if cfg.ReportsTimezone != "Asia/Kolkata" {
		t.Fatalf("expected timezone from .env, got %q", cfg.ReportsTimezone)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected normalized env production, got %s", cfg.Env)
	}
}

func TestLocationFallsBackToLocal(t *testing.T) {
	if got := (Config{ReportsTimezone: "Not/AZone"}).Location(); got != time.Local {
		t.Fatalf("expected local fallback, got %v", got)
	}
	if got := (Config{ReportsTimezone: "UTC"}).Location(); got.String() != "UTC" {
		t.Fatalf("expected UTC, got %v", got)
	}
}
