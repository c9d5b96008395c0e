// Test utilities for the sll CLI commands.
//
// Commands run against an httptest server through routeHandler, with every
// audience base URL pointed at the server and SLL_TOKEN set so no keyring
// is touched:
//
//	handler := newRouteHandler().
//	    On("GET", "/v1/workspaces", jsonResponse(200, `{"value": [...]}`))
//	setupTestEnvWithHandler(t, handler)
//	out, _, err := runCmd(t, "", "workspaces", "list", "-o", "json")
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"

	"github.com/KornAlexander/semantic-link-labs/internal/config"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
)

const (
	testWorkspaceID = "11111111-1111-1111-1111-111111111111"
	testItemID      = "22222222-2222-2222-2222-222222222222"
	testToken       = "test-token-0123456789"
)

// routeHandler routes requests by "METHOD /path" and records every call.
// Unrouted requests get a Fabric-style 404.
type routeHandler struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []string
	bodies map[string][]byte
}

func newRouteHandler() *routeHandler {
	return &routeHandler{routes: map[string]http.HandlerFunc{}, bodies: map[string][]byte{}}
}

func (h *routeHandler) On(method, path string, fn http.HandlerFunc) *routeHandler {
	h.routes[method+" "+path] = fn
	return h
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	var body bytes.Buffer
	_, _ = body.ReadFrom(r.Body)

	h.mu.Lock()
	h.calls = append(h.calls, key)
	h.bodies[key] = body.Bytes()
	fn, ok := h.routes[key]
	h.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"EntityNotFound","message":"no route for ` + key + `"}`))
		return
	}
	fn(w, r)
}

// called reports how many times "METHOD /path" was requested.
func (h *routeHandler) called(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c == key {
			n++
		}
	}
	return n
}

// body returns the last request body sent to "METHOD /path".
func (h *routeHandler) body(key string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bodies[key]
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// acceptedResponse starts a long-running operation polled at location.
func acceptedResponse(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusAccepted)
	}
}

// setupTestEnvWithHandler starts a server and points every audience at it.
func setupTestEnvWithHandler(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("SLL_TOKEN", testToken)
	t.Setenv("SLL_PROFILE", "")
	t.Setenv("SLL_ENV_FILE", "")
	t.Setenv("SLL_OUTPUT", "")
	for _, key := range []string{"SLL_FABRIC_URL", "SLL_POWERBI_URL", "SLL_AZURE_URL", "SLL_GRAPH_URL"} {
		t.Setenv(key, srv.URL)
	}
	for _, key := range []string{"SLL_MAX_RATE_LIMIT_RETRIES", "SLL_MAX_5XX_RETRIES", "SLL_CIRCUIT_BREAKER_THRESHOLD"} {
		t.Setenv(key, "")
	}
	return srv
}

// withTestKeyring swaps the keyring for an in-memory one.
func withTestKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	restore := config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	})
	t.Cleanup(restore)
	t.Setenv("SLL_TOKEN", "")
	t.Setenv("SLL_PROFILE", "")
	t.Setenv("SLL_ENV_FILE", "")
	t.Setenv("SLL_OUTPUT", "")
}

// runCmd executes the CLI with injected streams.
func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &iocontext.IO{
		Out:    &out,
		ErrOut: &errOut,
		In:     strings.NewReader(stdin),
	})
	err := Execute(ctx, args)
	return out.String(), errOut.String(), err
}

// decodeItems decodes {"items": [...]} list output.
func decodeItems(t *testing.T, output string) []map[string]any {
	t.Helper()
	var doc struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &doc), "output: %s", output)
	return doc.Items
}

func decodeObject(t *testing.T, output string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &doc), "output: %s", output)
	return doc
}

const workspacesPage = `{"value": [
	{"id": "11111111-1111-1111-1111-111111111111", "displayName": "Sales", "type": "Workspace", "capacityId": "cap-1"},
	{"id": "33333333-3333-3333-3333-333333333333", "displayName": "Finance", "type": "Workspace"}
]}`
