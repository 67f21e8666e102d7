package respond

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID, ok := c.Get("userId"); ok {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// FromError maps domain errors onto the standard error response.
// fallback is the message used for unexpected failures.
func FromError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		var details interface{}
		if fields := apperr.Fields(err); len(fields) > 0 {
			details = fields
		}
		respondError(c, http.StatusBadRequest, "validation_error", err, details)
	case errors.Is(err, apperr.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err, nil)
	case errors.Is(err, apperr.ErrInvalidState):
		respondError(c, http.StatusConflict, "invalid_state", err, nil)
	case errors.Is(err, apperr.ErrForbidden):
		respondError(c, http.StatusForbidden, "forbidden", err, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		Error(c, http.StatusRequestTimeout, "timeout", "request cancelled", nil)
	default:
		if err != nil {
			c.Set("internalError", err.Error())
		}
		Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func respondError(c *gin.Context, status int, code string, err error, details interface{}) {
	Error(c, status, code, err.Error(), details)
}
