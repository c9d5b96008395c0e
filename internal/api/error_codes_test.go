package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorCodeFromStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       ErrorCode
	}{
		{"400 Bad Request", 400, ErrBadRequest},
		{"401 Unauthorized", 401, ErrUnauthorized},
		{"403 Forbidden", 403, ErrForbidden},
		{"404 Not Found", 404, ErrNotFound},
		{"409 Conflict", 409, ErrConflict},
		{"422 Validation", 422, ErrValidation},
		{"429 Rate Limited", 429, ErrRateLimited},
		{"500 Server Error", 500, ErrServerError},
		{"503 Service Unavailable", 503, ErrServerError},
		{"200 OK (unknown)", 200, ErrUnknown},
		{"418 Teapot (unknown)", 418, ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorCodeFromStatus(tt.statusCode)
			if got != tt.want {
				t.Errorf("ErrorCodeFromStatus(%d) = %v, want %v", tt.statusCode, got, tt.want)
			}
		})
	}
}

func TestErrorCodeIsRetryable(t *testing.T) {
	retryable := []ErrorCode{ErrRateLimited, ErrServerError, ErrTimeout, ErrCircuitOpen}
	notRetryable := []ErrorCode{ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrValidation, ErrPagination, ErrOperationFailed, ErrUnsupportedMode, ErrUnknown}

	for _, code := range retryable {
		if !code.IsRetryable() {
			t.Errorf("%v.IsRetryable() = false, want true", code)
		}
	}
	for _, code := range notRetryable {
		if code.IsRetryable() {
			t.Errorf("%v.IsRetryable() = true, want false", code)
		}
	}
}

func TestErrorCodeSuggestion(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrUnauthorized, "Run 'sll auth login' with a fresh token"},
		{ErrNotFound, "Verify the workspace and item names or IDs"},
		{ErrTimeout, "The operation may still be running; check it later"},
		{ErrOperationFailed, "Inspect the operation error payload for details"},
		{ErrUnsupportedMode, ""},
		{ErrUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Suggestion(); got != tt.expected {
				t.Errorf("%v.Suggestion() = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}

func TestStructuredErrorError(t *testing.T) {
	err := &StructuredError{Code: ErrNotFound, Message: "resource not found"}
	if err.Error() != "[not_found] resource not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStructuredErrorJSONSerialization(t *testing.T) {
	err := &StructuredError{
		Code:       ErrRateLimited,
		Message:    "rate limit exceeded",
		Retryable:  true,
		Suggestion: "Wait",
		Context:    map[string]any{"retry_after": "30s"},
	}
	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("json.Marshal failed: %v", marshalErr)
	}
	var raw map[string]any
	if unmarshalErr := json.Unmarshal(data, &raw); unmarshalErr != nil {
		t.Fatalf("json.Unmarshal failed: %v", unmarshalErr)
	}
	if raw["code"] != "rate_limited" || raw["retryable"] != true {
		t.Errorf("unexpected JSON: %s", data)
	}
	if _, ok := raw["allowed_values"]; ok {
		t.Error("empty allowed_values should be omitted")
	}

	minimal, _ := json.Marshal(&StructuredError{Code: ErrUnknown, Message: "x"})
	var minRaw map[string]any
	_ = json.Unmarshal(minimal, &minRaw)
	if _, ok := minRaw["suggestion"]; ok {
		t.Error("empty suggestion should be omitted")
	}
}

func TestNewStructuredError(t *testing.T) {
	err := NewStructuredError(ErrServerError, "internal error")
	if err.Code != ErrServerError || err.Message != "internal error" {
		t.Errorf("unexpected error %+v", err)
	}
	if !err.Retryable {
		t.Error("Retryable should be true for server errors")
	}
	if err.Suggestion == "" {
		t.Error("Suggestion should be populated for server errors")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("mode", "bulk", []string{"default", "paginated"})

	if err.Code != ErrValidation || err.Retryable {
		t.Errorf("unexpected error %+v", err)
	}
	if len(err.AllowedValues) != 2 || err.AllowedValues[0] != "default" {
		t.Errorf("AllowedValues = %v", err.AllowedValues)
	}
	if err.Context["field"] != "mode" || err.Context["got"] != "bulk" {
		t.Errorf("Context = %v", err.Context)
	}
}

func TestStructuredErrorFromError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if result := StructuredErrorFromError(nil); result != nil {
			t.Errorf("StructuredErrorFromError(nil) = %v, want nil", result)
		}
	})

	t.Run("StructuredError passes through", func(t *testing.T) {
		original := NewValidationError("audience", "x", []string{"fabric"})
		if StructuredErrorFromError(fmt.Errorf("wrap: %w", original)) != original {
			t.Error("should return the original StructuredError")
		}
	})

	t.Run("HTTPError", func(t *testing.T) {
		result := StructuredErrorFromError(&HTTPError{StatusCode: 403, ErrorCode: "InsufficientPrivileges", Message: "denied", RequestID: "r1"})
		if result.Code != ErrForbidden {
			t.Errorf("Code = %v, want %v", result.Code, ErrForbidden)
		}
		if result.Context["error_code"] != "InsufficientPrivileges" || result.Context["request_id"] != "r1" || result.Context["status_code"] != 403 {
			t.Errorf("Context = %v", result.Context)
		}
	})

	t.Run("PaginationError", func(t *testing.T) {
		result := StructuredErrorFromError(&PaginationError{Page: 2, Reason: "cycle"})
		if result.Code != ErrPagination || result.Context["page"] != 2 {
			t.Errorf("unexpected %+v", result)
		}
	})

	t.Run("LROFailedError", func(t *testing.T) {
		payload := map[string]any{"errorCode": "E"}
		result := StructuredErrorFromError(&LROFailedError{Status: OperationFailed, Payload: payload})
		if result.Code != ErrOperationFailed || result.Context["status"] != OperationFailed {
			t.Errorf("unexpected %+v", result)
		}
		if _, ok := result.Context["error"]; !ok {
			t.Error("payload should be carried in context")
		}
	})

	t.Run("LROTimeoutError", func(t *testing.T) {
		result := StructuredErrorFromError(&LROTimeoutError{Polls: 3, LastStatus: OperationRunning})
		if result.Code != ErrTimeout || !result.Retryable {
			t.Errorf("unexpected %+v", result)
		}
	})

	t.Run("UnsupportedModeError", func(t *testing.T) {
		result := StructuredErrorFromError(&UnsupportedModeError{Mode: "bulk"})
		if result.Code != ErrUnsupportedMode || len(result.AllowedValues) != 4 {
			t.Errorf("unexpected %+v", result)
		}
	})

	t.Run("RateLimitError", func(t *testing.T) {
		result := StructuredErrorFromError(&RateLimitError{RetryAfter: 30 * time.Second})
		if result.Code != ErrRateLimited || result.Context["retry_after"] != "30s" {
			t.Errorf("unexpected %+v", result)
		}
	})

	t.Run("CircuitBreakerError", func(t *testing.T) {
		result := StructuredErrorFromError(&CircuitBreakerError{})
		if result.Code != ErrCircuitOpen || !result.Retryable {
			t.Errorf("unexpected %+v", result)
		}
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		result := StructuredErrorFromError(fmt.Errorf("request failed: %w", context.DeadlineExceeded))
		if result.Code != ErrTimeout {
			t.Errorf("Code = %v, want %v", result.Code, ErrTimeout)
		}
	})

	t.Run("generic error", func(t *testing.T) {
		result := StructuredErrorFromError(errors.New("something went wrong"))
		if result.Code != ErrUnknown || result.Message != "something went wrong" || result.Retryable {
			t.Errorf("unexpected %+v", result)
		}
	})
}
