package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/auth"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := testTokens(t)

	router := gin.New()
	router.Use(RequestID(), Auth(tokens), Logging())
	router.POST("/api/v1/files/:id/transitions", func(c *gin.Context) {
		c.Set(FileIDKey, int64(12))
		c.Set(TransactionIDKey, "TRX-2024-00012")
		c.Set(StatusTransitionKey, "scanning_completed->qc_pending")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/12/transitions", nil)
	req.Header.Set("Authorization", bearer(t, tokens, auth.Claims{UserID: 2, Username: "operator1", Role: "operator", Permission: "edit"}))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		t.Fatalf("expected log output")
	}
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "user_id", "file_id", "transaction_id", "duration_ms", "status", "status_transition", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["user_id"] != float64(2) {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["file_id"] != float64(12) {
		t.Fatalf("unexpected file_id: %v", payload["file_id"])
	}
	if payload["route"] != "/api/v1/files/:id/transitions" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
	if payload["status_transition"] != "scanning_completed->qc_pending" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
}
