package outfmt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KornAlexander/semantic-link-labs/internal/filter"
)

type queryKey struct{}

// WithQuery adds a jq expression to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the jq expression from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// toGeneric round-trips v through JSON so jq sees plain maps and slices.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return out, nil
}

// ApplyQuery converts v to generic JSON and runs query over it. An empty
// query returns the generic value unchanged.
func ApplyQuery(v any, query string) (any, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return generic, nil
	}
	return filter.Apply(generic, query)
}
