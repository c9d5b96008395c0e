package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// CreatePrivateEndpointRequest is the body of a managed private endpoint create call.
type CreatePrivateEndpointRequest struct {
	Name                        string `json:"name"`
	TargetPrivateLinkResourceID string `json:"targetPrivateLinkResourceId"`
	TargetSubresourceType       string `json:"targetSubresourceType"`
	RequestMessage              string `json:"requestMessage,omitempty"`
}

func privateEndpointsPath(workspaceID string) string {
	return workspacePath(workspaceID) + "/managedPrivateEndpoints"
}

// List retrieves the managed private endpoints of a workspace.
func (s PrivateEndpointsService) List(ctx context.Context, workspaceID string) ([]ManagedPrivateEndpoint, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	items, err := s.Normalizer.List(ctx, Request{Method: http.MethodGet, Route: privateEndpointsPath(workspaceID)})
	if err != nil {
		return nil, err
	}
	var out []ManagedPrivateEndpoint
	if err := decodeInto(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFQDNs retrieves the target FQDNs routed through a managed private
// endpoint. The call follows continuation tokens like any other listing.
func (s PrivateEndpointsService) ListFQDNs(ctx context.Context, workspaceID, endpointID string) ([]TargetFQDN, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("managed private endpoint", endpointID); err != nil {
		return nil, err
	}
	items, err := s.Normalizer.List(ctx, Request{
		Method: http.MethodGet,
		Route:  privateEndpointsPath(workspaceID) + "/" + url.PathEscape(strings.TrimSpace(endpointID)) + "/targetFQDNs",
	})
	if err != nil {
		return nil, err
	}
	var out []TargetFQDN
	if err := decodeInto(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create creates a managed private endpoint. Approval happens on the target
// resource, so the endpoint usually starts in a pending connection state.
func (s PrivateEndpointsService) Create(ctx context.Context, workspaceID string, req CreatePrivateEndpointRequest) (*ManagedPrivateEndpoint, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, NewStructuredError(ErrValidation, "endpoint name is required")
	}
	if strings.TrimSpace(req.TargetPrivateLinkResourceID) == "" {
		return nil, NewStructuredError(ErrValidation, "target private link resource ID is required")
	}
	if strings.TrimSpace(req.TargetSubresourceType) == "" {
		return nil, NewStructuredError(ErrValidation, "target subresource type is required")
	}
	if len(req.RequestMessage) > 140 {
		return nil, NewStructuredError(ErrValidation, "request message must be 140 characters or fewer")
	}

	body, err := s.Get(ctx, Request{
		Method:      http.MethodPost,
		Route:       privateEndpointsPath(workspaceID),
		Body:        req,
		StatusCodes: []int{http.StatusCreated},
	})
	if err != nil {
		return nil, err
	}
	var out ManagedPrivateEndpoint
	if err := decodeInto(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a managed private endpoint.
func (s PrivateEndpointsService) Delete(ctx context.Context, workspaceID, endpointID string) error {
	if err := requireID("workspace", workspaceID); err != nil {
		return err
	}
	if err := requireID("managed private endpoint", endpointID); err != nil {
		return err
	}
	_, err := s.Get(ctx, Request{
		Method:      http.MethodDelete,
		Route:       privateEndpointsPath(workspaceID) + "/" + url.PathEscape(strings.TrimSpace(endpointID)),
		StatusCodes: []int{http.StatusOK},
	})
	return err
}
