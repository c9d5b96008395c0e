// Package debug carries the --debug flag through context and configures
// the process-wide slog handler.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const debugKey contextKey = "debug_enabled"

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// Level maps the debug flag to a log level. Retry notices are logged at
// Info, so they only show with --debug.
func Level(debugEnabled bool) slog.Level {
	if debugEnabled {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewLogger returns a text logger writing to w. A nil w means stderr.
func NewLogger(w io.Writer, debugEnabled bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level(debugEnabled)}))
}

// SetupLogger installs NewLogger(w, debugEnabled) as the slog default.
func SetupLogger(w io.Writer, debugEnabled bool) {
	slog.SetDefault(NewLogger(w, debugEnabled))
}
