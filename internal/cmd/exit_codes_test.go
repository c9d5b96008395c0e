package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/config"
	"github.com/KornAlexander/semantic-link-labs/internal/resolve"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, exitOK},
		{"help", pflag.ErrHelp, exitOK},
		{"not configured", config.ErrNotConfigured, exitAuth},
		{"wrapped not configured", fmt.Errorf("load: %w", config.ErrNotConfigured), exitAuth},
		{"unauthorized", &api.HTTPError{StatusCode: 401}, exitAuth},
		{"forbidden", &api.HTTPError{StatusCode: 403}, exitForbidden},
		{"not found", &api.HTTPError{StatusCode: 404, ErrorCode: "EntityNotFound"}, exitNotFound},
		{"name not found", &resolve.NotFoundError{Kind: "workspace", Query: "x"}, exitNotFound},
		{"ambiguous", &resolve.AmbiguousError{Query: "x"}, exitUsage},
		{"bad request", &api.HTTPError{StatusCode: 400}, exitUsage},
		{"conflict", &api.HTTPError{StatusCode: 409}, exitUsage},
		{"rate limited", &api.RateLimitError{RetryAfter: time.Second}, exitRateLimited},
		{"server", &api.HTTPError{StatusCode: 503}, exitServer},
		{"circuit open", &api.CircuitBreakerError{}, exitServer},
		{"pagination", &api.PaginationError{Page: 2, Reason: "loop"}, exitServer},
		{"operation failed", &api.LROFailedError{Status: "Failed"}, exitOperationFailed},
		{"operation timeout", &api.LROTimeoutError{Polls: 3, LastStatus: "Running"}, exitNetwork},
		{"unsupported mode", &api.UnsupportedModeError{Mode: "stream"}, exitUsage},
		{"validation", api.NewValidationError("item type", "x", []string{"Report"}), exitUsage},
		{"deadline", context.DeadlineExceeded, exitNetwork},
		{"usage", errors.New("unknown command \"nope\""), exitUsage},
		{"required flag", errors.New(`required flag(s) "workspace" not set`), exitUsage},
		{"network", errors.New("dial tcp: connection refused"), exitNetwork},
		{"generic", errors.New("boom"), exitGeneric},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.code {
				t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.code)
			}
		})
	}
}

func TestExitCode_HandledErrorUsesStoredCode(t *testing.T) {
	err := &handledError{err: errors.New("wrapped"), exitCode: exitNotFound}
	if got := ExitCode(err); got != exitNotFound {
		t.Fatalf("ExitCode(handled) = %d, want %d", got, exitNotFound)
	}
}

func TestExitCode_HandledErrorWithoutCodeFallsBack(t *testing.T) {
	err := &handledError{err: &api.LROFailedError{Status: "Cancelled"}}
	if got := ExitCode(err); got != exitOperationFailed {
		t.Fatalf("ExitCode(handled) = %d, want %d", got, exitOperationFailed)
	}
}
