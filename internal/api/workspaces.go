package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// List retrieves every workspace the caller can access.
func (s WorkspacesService) List(ctx context.Context) ([]Workspace, error) {
	items, err := s.Normalizer.List(ctx, Request{Method: http.MethodGet, Route: "/v1/workspaces"})
	if err != nil {
		return nil, err
	}
	var out []Workspace
	if err := decodeInto(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get retrieves a workspace by ID.
func (s WorkspacesService) Get(ctx context.Context, id string) (*Workspace, error) {
	if err := requireID("workspace", id); err != nil {
		return nil, err
	}
	body, err := s.Normalizer.Get(ctx, Request{Method: http.MethodGet, Route: workspacePath(id)})
	if err != nil {
		return nil, err
	}
	var out Workspace
	if err := decodeInto(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func workspacePath(id string) string {
	return "/v1/workspaces/" + url.PathEscape(strings.TrimSpace(id))
}

// requireID rejects IDs that are not UUIDs before they reach a route.
func requireID(kind, id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return &StructuredError{
			Code:       ErrValidation,
			Message:    "invalid " + kind + " ID " + `"` + id + `": expected a UUID`,
			Suggestion: "Pass the " + kind + " name or its UUID",
			Context:    map[string]any{"field": strings.ReplaceAll(kind, " ", "_") + "_id", "got": id},
		}
	}
	return nil
}
