package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestStatusWithoutDatabase(t *testing.T) {
	st := NewService(nil).Status(context.Background())
	if !st.OK || st.Database != "memory" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestHealthRouteReportsUnreachableDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewService(fakePinger{err: errors.New("down")}).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	r = gin.New()
	NewService(fakePinger{}).RegisterRoutes(r.Group("/api/v1"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
