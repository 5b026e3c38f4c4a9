package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidPayload, http.StatusBadRequest},
		{ErrCodeValidationTimestampOrder, http.StatusBadRequest},
		{ErrCodeValidationInvalidID, http.StatusBadRequest},
		{ErrCodeNotFoundEvent, http.StatusNotFound},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestAppErrorError(t *testing.T) {
	err := NewAppError(ErrCodeNotFoundEvent, "event does not exist", nil)
	want := "not_found_event: event does not exist"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("row scan failed")
	err := NewAppError(ErrCodeInternalDB, "query failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	wrapped := fmt.Errorf("repository: %w", err)
	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should find the AppError through a wrap")
	}
	if appErr.Code != ErrCodeInternalDB {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeInternalDB)
	}
	if appErr.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d, want 500", appErr.HTTPStatus())
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	err := NewAppErrorWithDetails(ErrCodeValidationTimestampOrder, "timestamps out of order", nil, map[string]any{
		"field":  "end_time",
		"before": "start_time",
	})
	if err.Details["field"] != "end_time" {
		t.Errorf("Details[field] = %v, want end_time", err.Details["field"])
	}
	if err.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("HTTPStatus() = %d, want 400", err.HTTPStatus())
	}
}
