package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Response is the raw outcome of a single HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body as a JSON object. An empty body decodes to an empty map.
func (r *Response) JSON() (map[string]any, error) {
	if r == nil || len(strings.TrimSpace(string(r.Body))) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// PathResolver turns an audience-relative route into an absolute URL.
//
// Absolute routes (continuation links, Location headers) are accepted only
// when they point at one of the resolver's configured hosts.
type PathResolver interface {
	ResolveURL(audience Audience, route string, query url.Values) (string, error)
}

// HTTPExecutor performs one HTTP exchange. Non-2xx responses are returned as
// a Response, not an error; errors are reserved for transport failures.
type HTTPExecutor interface {
	Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error)
}

// Requester is the HTTP capability the Normalizer depends on.
type Requester interface {
	PathResolver
	HTTPExecutor
}
