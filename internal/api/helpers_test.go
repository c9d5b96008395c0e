package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// recordingSleeper captures requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

// newTestNormalizer serves handler over httptest and points every audience at it.
func newTestNormalizer(t *testing.T, handler http.Handler) (*Normalizer, *httptest.Server, *recordingSleeper) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, "test-token")
	n := NewNormalizer(client)
	sleeper := &recordingSleeper{}
	n.Sleep = sleeper.sleep
	return n, server, sleeper
}

func newTestClient(baseURL, token string) *Client {
	overrides := map[Audience]string{}
	for _, a := range Audiences() {
		overrides[a] = baseURL
	}
	client := New(token, overrides)
	client.SetRetryConfig(RetryConfig{
		CircuitBreakerThreshold: DefaultCircuitBreakerThreshold,
		CircuitBreakerResetTime: DefaultCircuitBreakerResetTime,
	})
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// countingRequester records how often it is called.
type countingRequester struct {
	resolves int
	calls    int
}

func (c *countingRequester) ResolveURL(Audience, string, url.Values) (string, error) {
	c.resolves++
	return "http://example.invalid/", nil
}

func (c *countingRequester) Do(context.Context, string, string, []byte) (*Response, error) {
	c.calls++
	return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(`{}`)}, nil
}

const (
	testWorkspaceID = "11111111-2222-3333-4444-555555555555"
	testItemID      = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)
