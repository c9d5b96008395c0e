package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoOperationLocation is returned when a 202 response carries neither a
// Location header nor an x-ms-operation-id header to poll.
var ErrNoOperationLocation = errors.New("long-running operation accepted without a Location or x-ms-operation-id header")

// HTTPError is a non-2xx response (or a status outside the expected set).
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	ErrorCode  string
	Message    string
	RequestID  string
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "API error (status %d)", e.StatusCode)
	if e.ErrorCode != "" {
		fmt.Fprintf(&b, " %s", e.ErrorCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

func newHTTPError(method, rawURL string, resp *Response) *HTTPError {
	code, msg := extractErrorDetails(resp.Body)
	return &HTTPError{
		Method:     method,
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		ErrorCode:  code,
		Message:    msg,
		RequestID:  requestIDFromHeader(resp.Header),
	}
}

// extractErrorDetails pulls the error code and message out of the Fabric
// ({"errorCode","message"}) or Azure/Graph ({"error":{"code","message"}})
// error shapes. Unrecognised bodies are redacted.
func extractErrorDetails(body []byte) (string, string) {
	var errResp struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
		Error     any    `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		if len(strings.TrimSpace(string(body))) == 0 {
			return "", ""
		}
		return "", "API request failed (response body redacted for security)"
	}

	code, msg := errResp.ErrorCode, errResp.Message
	switch v := errResp.Error.(type) {
	case map[string]any:
		if s, ok := v["code"].(string); ok && code == "" {
			code = s
		}
		if s, ok := v["message"].(string); ok && msg == "" {
			msg = s
		}
	case string:
		if msg == "" {
			msg = v
		}
	}
	if code == "" && msg == "" {
		return "", "API request failed (response body redacted for security)"
	}
	return code, msg
}

// PaginationError reports a continuation cycle or malformed page data.
type PaginationError struct {
	URL    string
	Page   int
	Reason string
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination failed on page %d: %s", e.Page, e.Reason)
}

// LROFailedError reports a long-running operation that reached a failed
// terminal state. Payload carries the upstream failure details.
type LROFailedError struct {
	OperationURL string
	Status       string
	Payload      map[string]any
}

func (e *LROFailedError) Error() string {
	msg := fmt.Sprintf("long-running operation finished with status %s", e.Status)
	if e.Payload != nil {
		code, _ := e.Payload["errorCode"].(string)
		if code == "" {
			code, _ = e.Payload["code"].(string)
		}
		detail, _ := e.Payload["message"].(string)
		switch {
		case code != "" && detail != "":
			msg += fmt.Sprintf(": %s: %s", code, detail)
		case detail != "":
			msg += ": " + detail
		case code != "":
			msg += ": " + code
		}
	}
	return msg
}

// LROTimeoutError is returned when the poll bound is exhausted before the
// operation reaches a terminal state.
type LROTimeoutError struct {
	OperationURL string
	Polls        int
	LastStatus   string
}

func (e *LROTimeoutError) Error() string {
	return fmt.Sprintf("long-running operation still %s after %d polls; it may still be in progress", e.LastStatus, e.Polls)
}

// UnsupportedModeError is a programming error: an unknown Mode value.
type UnsupportedModeError struct {
	Mode Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("unsupported response mode %q (use one of %s)", string(e.Mode), strings.Join(modeNames(), ", "))
}

// RateLimitError represents a rate limit exceeded error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// CircuitBreakerError indicates the circuit breaker is open.
type CircuitBreakerError struct{}

func (e *CircuitBreakerError) Error() string {
	return "circuit breaker is open, too many recent failures"
}

// IsHTTPError checks if the error is an HTTP error.
func IsHTTPError(err error) bool {
	var e *HTTPError
	return errors.As(err, &e)
}

// IsPaginationError checks if the error is a pagination error.
func IsPaginationError(err error) bool {
	var e *PaginationError
	return errors.As(err, &e)
}

// IsLROFailedError checks if the error is a failed long-running operation.
func IsLROFailedError(err error) bool {
	var e *LROFailedError
	return errors.As(err, &e)
}

// IsUnsupportedModeError checks if the error is an unsupported mode error.
func IsUnsupportedModeError(err error) bool {
	var e *UnsupportedModeError
	return errors.As(err, &e)
}

// IsRateLimitError checks if the error is a rate limit error.
func IsRateLimitError(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// IsCircuitBreakerError checks if the error is a circuit breaker error.
func IsCircuitBreakerError(err error) bool {
	var e *CircuitBreakerError
	return errors.As(err, &e)
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusNotFound ||
			strings.HasSuffix(httpErr.ErrorCode, "NotFound")
	}
	return false
}
