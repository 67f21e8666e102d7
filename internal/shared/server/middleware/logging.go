package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate records.
const (
	FileIDKey           = "fileId"
	TransactionIDKey    = "transactionId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		fields := map[string]any{
			"request_id":        reqID,
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            status,
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		}
		if fileID, ok := c.Get(FileIDKey); ok {
			fields["file_id"] = fileID
		}
		if trx := c.GetString(TransactionIDKey); trx != "" {
			fields["transaction_id"] = trx
		}
		if internal := c.GetString("internalError"); internal != "" {
			fields["error"] = internal
		}
		telemetry.Info("request.complete", fields)
	}
}
