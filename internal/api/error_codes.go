package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents machine-readable error codes for scripted callers.
type ErrorCode string

const (
	// ErrBadRequest indicates a malformed request (HTTP 400).
	ErrBadRequest ErrorCode = "bad_request"
	// ErrUnauthorized indicates the token is missing, expired or invalid (HTTP 401).
	ErrUnauthorized ErrorCode = "unauthorized"
	// ErrForbidden indicates the principal lacks permission (HTTP 403).
	ErrForbidden ErrorCode = "forbidden"
	// ErrNotFound indicates the requested resource does not exist (HTTP 404).
	ErrNotFound ErrorCode = "not_found"
	// ErrConflict indicates a conflict with current state (HTTP 409).
	ErrConflict ErrorCode = "conflict"
	// ErrValidation indicates input validation failed.
	ErrValidation ErrorCode = "validation_failed"
	// ErrRateLimited indicates too many requests (HTTP 429).
	ErrRateLimited ErrorCode = "rate_limited"
	// ErrServerError indicates an internal server error (HTTP 5xx).
	ErrServerError ErrorCode = "server_error"
	// ErrTimeout indicates the request or operation timed out.
	ErrTimeout ErrorCode = "timeout"
	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen ErrorCode = "circuit_open"
	// ErrPagination indicates a continuation cycle or malformed page.
	ErrPagination ErrorCode = "pagination_failed"
	// ErrOperationFailed indicates a long-running operation failed.
	ErrOperationFailed ErrorCode = "operation_failed"
	// ErrUnsupportedMode indicates an unknown response mode.
	ErrUnsupportedMode ErrorCode = "unsupported_mode"
	// ErrUnknown indicates an unknown or unclassified error.
	ErrUnknown ErrorCode = "unknown"
)

// IsRetryable returns true if errors with this code may succeed on retry.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrRateLimited, ErrServerError, ErrTimeout, ErrCircuitOpen:
		return true
	default:
		return false
	}
}

// Suggestion returns a human-readable suggestion for resolving this error.
func (c ErrorCode) Suggestion() string {
	switch c {
	case ErrUnauthorized:
		return "Run 'sll auth login' with a fresh token"
	case ErrForbidden:
		return "Check the workspace role of the signed-in principal"
	case ErrNotFound:
		return "Verify the workspace and item names or IDs"
	case ErrRateLimited:
		return "Wait for the Retry-After period and retry"
	case ErrValidation:
		return "Check the input values"
	case ErrBadRequest:
		return "Check the request format and parameters"
	case ErrConflict:
		return "An item with that name may already exist"
	case ErrServerError:
		return "The service encountered an error; try again later"
	case ErrTimeout:
		return "The operation may still be running; check it later"
	case ErrCircuitOpen:
		return "Too many recent failures; wait before retrying"
	case ErrPagination:
		return "The service returned inconsistent continuation data; retry the listing"
	case ErrOperationFailed:
		return "Inspect the operation error payload for details"
	default:
		return ""
	}
}

// ErrorCodeFromStatus maps an HTTP status code to an ErrorCode.
func ErrorCodeFromStatus(statusCode int) ErrorCode {
	switch statusCode {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 409:
		return ErrConflict
	case 422:
		return ErrValidation
	case 429:
		return ErrRateLimited
	default:
		if statusCode >= 500 && statusCode < 600 {
			return ErrServerError
		}
		return ErrUnknown
	}
}

// StructuredError provides machine-readable error information.
type StructuredError struct {
	Code          ErrorCode      `json:"code"`
	Message       string         `json:"message"`
	Retryable     bool           `json:"retryable"`
	Suggestion    string         `json:"suggestion,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	AllowedValues []string       `json:"allowed_values,omitempty"`
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MarshalJSON implements custom JSON marshaling.
func (e *StructuredError) MarshalJSON() ([]byte, error) {
	type Alias StructuredError
	return json.Marshal((*Alias)(e))
}

// NewStructuredError creates a StructuredError from an ErrorCode and message.
func NewStructuredError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:       code,
		Message:    message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
	}
}

// NewValidationError creates a StructuredError for input validation failures,
// including the list of allowed values.
func NewValidationError(field string, got string, allowed []string) *StructuredError {
	return &StructuredError{
		Code:          ErrValidation,
		Message:       fmt.Sprintf("invalid %s %q: must be one of %s", field, got, strings.Join(allowed, ", ")),
		Suggestion:    fmt.Sprintf("Use one of: %s", strings.Join(allowed, ", ")),
		AllowedValues: allowed,
		Context:       map[string]any{"field": field, "got": got},
	}
}

// StructuredErrorFromError converts any error to a StructuredError.
func StructuredErrorFromError(err error) *StructuredError {
	if err == nil {
		return nil
	}

	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		code := ErrorCodeFromStatus(httpErr.StatusCode)
		ctx := map[string]any{"status_code": httpErr.StatusCode}
		if httpErr.ErrorCode != "" {
			ctx["error_code"] = httpErr.ErrorCode
		}
		if httpErr.RequestID != "" {
			ctx["request_id"] = httpErr.RequestID
		}
		return &StructuredError{
			Code:       code,
			Message:    httpErr.Error(),
			Retryable:  code.IsRetryable(),
			Suggestion: code.Suggestion(),
			Context:    ctx,
		}
	}

	var pageErr *PaginationError
	if errors.As(err, &pageErr) {
		se := NewStructuredError(ErrPagination, pageErr.Error())
		se.Context = map[string]any{"page": pageErr.Page}
		return se
	}

	var lroErr *LROFailedError
	if errors.As(err, &lroErr) {
		se := NewStructuredError(ErrOperationFailed, lroErr.Error())
		se.Context = map[string]any{"status": lroErr.Status}
		if lroErr.Payload != nil {
			se.Context["error"] = lroErr.Payload
		}
		return se
	}

	var timeoutErr *LROTimeoutError
	if errors.As(err, &timeoutErr) {
		return NewStructuredError(ErrTimeout, timeoutErr.Error())
	}

	var modeErr *UnsupportedModeError
	if errors.As(err, &modeErr) {
		se := NewStructuredError(ErrUnsupportedMode, modeErr.Error())
		se.AllowedValues = modeNames()
		return se
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		se := NewStructuredError(ErrRateLimited, rateLimitErr.Error())
		se.Context = map[string]any{"retry_after": rateLimitErr.RetryAfter.String()}
		return se
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return NewStructuredError(ErrCircuitOpen, cbErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewStructuredError(ErrTimeout, err.Error())
	}

	return &StructuredError{
		Code:    ErrUnknown,
		Message: err.Error(),
	}
}
