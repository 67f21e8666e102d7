package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create receipt: %w", Invalid("cnrNumber", "is required"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	fields := Fields(err)
	if len(fields) != 1 || fields[0].Field != "cnrNumber" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestValidationErrorOrNil(t *testing.T) {
	var ve ValidationError
	if ve.OrNil() != nil {
		t.Fatalf("expected nil for empty validation error")
	}
	ve.Add("pageCount", "must be positive")
	ve.Add("caseYear", "out of range")
	err := ve.OrNil()
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "validation failed: pageCount: must be positive; caseYear: out of range" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestWrappedSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{NotFound("file %d", 7), ErrNotFound},
		{InvalidState("file %d is %s", 7, "qc_done"), ErrInvalidState},
		{Forbidden("user %d cannot be deleted", 1), ErrForbidden},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Fatalf("expected %v to match %v", tt.err, tt.want)
		}
		if errors.Is(tt.err, ErrValidation) {
			t.Fatalf("unexpected validation match for %v", tt.err)
		}
	}
}
