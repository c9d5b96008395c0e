// Package iocontext provides injectable I/O streams via context for testability.
package iocontext

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// IO holds the input/output streams for commands.
type IO struct {
	Out    io.Writer // stdout
	ErrOut io.Writer // stderr
	In     io.Reader // stdin
}

// DefaultIO returns the standard IO streams.
func DefaultIO() *IO {
	return &IO{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		In:     os.Stdin,
	}
}

type ioKey struct{}

// WithIO adds IO streams to a context.
func WithIO(ctx context.Context, io *IO) context.Context {
	return context.WithValue(ctx, ioKey{}, io)
}

// GetIO retrieves IO streams from context, defaulting to standard streams.
func GetIO(ctx context.Context) *IO {
	if io, ok := ctx.Value(ioKey{}).(*IO); ok && io != nil {
		return io
	}
	return DefaultIO()
}

// ReadFile reads path, or the context's stdin when path is "-".
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	if path == "-" {
		in := GetIO(ctx).In
		if in == nil {
			return nil, fmt.Errorf("no input stream available")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// ReadValue resolves a flag value that is either literal text or, with an
// "@" prefix, a file reference ("@body.json", "@-" for stdin).
func ReadValue(ctx context.Context, value string) ([]byte, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		return ReadFile(ctx, path)
	}
	return []byte(value), nil
}
