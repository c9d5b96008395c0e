package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/KornAlexander/semantic-link-labs/internal/debug"
)

const DefaultTimeout = 60 * time.Second

// Audience selects which REST surface a route belongs to.
type Audience string

const (
	AudienceFabric  Audience = "fabric"
	AudiencePowerBI Audience = "powerbi"
	AudienceAzure   Audience = "azure"
	AudienceGraph   Audience = "graph"
)

// DefaultBaseURLs are the public-cloud endpoints for each audience.
var DefaultBaseURLs = map[Audience]string{
	AudienceFabric:  "https://api.fabric.microsoft.com",
	AudiencePowerBI: "https://api.powerbi.com",
	AudienceAzure:   "https://management.azure.com",
	AudienceGraph:   "https://graph.microsoft.com",
}

// Audiences lists the known audiences in a stable order.
func Audiences() []Audience {
	return []Audience{AudienceFabric, AudiencePowerBI, AudienceAzure, AudienceGraph}
}

// ParseAudience validates an audience name. Empty means fabric.
func ParseAudience(s string) (Audience, error) {
	switch a := Audience(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AudienceFabric, nil
	case AudienceFabric, AudiencePowerBI, AudienceAzure, AudienceGraph:
		return a, nil
	default:
		return "", NewValidationError("audience", s, []string{"fabric", "powerbi", "azure", "graph"})
	}
}

// Client is the Fabric / Power BI REST client. It implements Requester.
//
// The client includes a circuit breaker that tracks server failures across
// requests for the lifetime of the client. Use ResetCircuitBreaker to clear it.
type Client struct {
	BaseURLs       map[Audience]string
	Token          string
	HTTP           *http.Client
	UserAgent      string
	RetryConfig    RetryConfig
	circuitBreaker *circuitBreaker
}

// Compile-time interface implementation checks
var (
	_ Requester    = (*Client)(nil)
	_ PathResolver = (*Client)(nil)
	_ HTTPExecutor = (*Client)(nil)
)

// New creates a client using the default public-cloud base URLs, with any
// non-empty entry in overrides replacing the default for that audience.
func New(token string, overrides map[Audience]string) *Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	bases := make(map[Audience]string, len(DefaultBaseURLs))
	for aud, base := range DefaultBaseURLs {
		bases[aud] = base
	}
	for aud, base := range overrides {
		if base = strings.TrimSpace(base); base != "" {
			bases[aud] = strings.TrimSuffix(base, "/")
		}
	}

	retryCfg := DefaultRetryConfig()
	return &Client{
		BaseURLs:    bases,
		Token:       token,
		RetryConfig: retryCfg,
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
		circuitBreaker: newCircuitBreaker(retryCfg.CircuitBreakerThreshold, retryCfg.CircuitBreakerResetTime),
	}
}

// ResetCircuitBreaker clears the circuit breaker state.
func (c *Client) ResetCircuitBreaker() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.reset()
	}
}

// SetRetryConfig updates the retry configuration and aligns circuit breaker settings.
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.RetryConfig = cfg
	if c.circuitBreaker != nil {
		c.circuitBreaker.mu.Lock()
		c.circuitBreaker.threshold = cfg.CircuitBreakerThreshold
		c.circuitBreaker.resetTime = cfg.CircuitBreakerResetTime
		c.circuitBreaker.mu.Unlock()
	}
}

// ResolveURL joins a relative route to the audience base URL. Absolute routes
// must share scheme, host and port with one of the configured base URLs.
func (c *Client) ResolveURL(audience Audience, route string, query url.Values) (string, error) {
	if audience == "" {
		audience = AudienceFabric
	}
	baseRaw, ok := c.BaseURLs[audience]
	if !ok || baseRaw == "" {
		return "", fmt.Errorf("no base URL configured for audience %q", audience)
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return "", fmt.Errorf("invalid base URL for %s: %w", audience, err)
	}

	trimmed := strings.TrimSpace(route)
	if trimmed == "" {
		return "", fmt.Errorf("route is empty")
	}
	loc, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid route %q: %w", trimmed, err)
	}

	var resolved *url.URL
	if loc.IsAbs() {
		if !c.knownHost(loc) {
			return "", fmt.Errorf("refusing to call unknown host: %s", loc.Host)
		}
		resolved = loc
	} else {
		if !strings.HasPrefix(loc.Path, "/") {
			loc.Path = "/" + loc.Path
		}
		resolved = base.ResolveReference(&url.URL{
			Path:     strings.TrimSuffix(base.Path, "/") + loc.Path,
			RawQuery: loc.RawQuery,
		})
	}

	if len(query) > 0 {
		merged := resolved.Query()
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			merged.Del(k)
			for _, v := range query[k] {
				merged.Add(k, v)
			}
		}
		resolved.RawQuery = merged.Encode()
	}
	return resolved.String(), nil
}

func (c *Client) knownHost(u *url.URL) bool {
	for _, raw := range c.BaseURLs {
		base, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if sameHost(base, u) {
			return true
		}
	}
	return false
}

func sameHost(a, b *url.URL) bool {
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	if !strings.EqualFold(a.Hostname(), b.Hostname()) {
		return false
	}
	return effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if u == nil {
		return ""
	}
	if port := u.Port(); port != "" {
		return port
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}

// Do performs one logical HTTP exchange. Configured transport retries for
// 429 and 5xx happen here, below the Normalizer.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	if c.circuitBreaker != nil && c.circuitBreaker.isOpen() {
		return nil, &CircuitBreakerError{}
	}

	isIdempotent := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions

	var retries429, retries5xx int
	attempt := 0

	for {
		attempt++
		start := time.Now()
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if debug.IsEnabled(ctx) {
				slog.Debug("request failed", "method", method, "url", rawURL, "attempt", attempt, "error", err)
			}
			return nil, fmt.Errorf("request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("request complete", "method", method, "url", rawURL, "status", resp.StatusCode, "attempt", attempt, "duration", time.Since(start))
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if !isIdempotent || c.RetryConfig.MaxRateLimitRetries <= 0 {
				return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
			}
			retryAfter, hasRetryAfter := retryAfterDuration(resp.Header)
			if retries429 >= c.RetryConfig.MaxRateLimitRetries {
				if !hasRetryAfter {
					retryAfter = c.RetryConfig.RateLimitBaseDelay
				}
				return nil, &RateLimitError{RetryAfter: retryAfter}
			}
			delay := retryAfter
			if !hasRetryAfter {
				delay = c.RetryConfig.RateLimitBaseDelay * time.Duration(1<<retries429)
			}
			slog.Info("rate limited, retrying", "delay", delay, "attempt", retries429+1)
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
			retries429++
			continue
		}

		if resp.StatusCode >= 500 {
			if c.circuitBreaker != nil {
				c.circuitBreaker.recordFailure()
			}
			if isIdempotent && retries5xx < c.RetryConfig.Max5xxRetries {
				slog.Info("server error, retrying", "status", resp.StatusCode)
				if err := sleepWithContext(ctx, c.RetryConfig.ServerErrorRetryDelay); err != nil {
					return nil, err
				}
				retries5xx++
				continue
			}
		} else if resp.StatusCode < 400 && c.circuitBreaker != nil {
			c.circuitBreaker.recordSuccess()
		}

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
	}
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

func requestIDFromHeader(header http.Header) string {
	if header == nil {
		return ""
	}
	for _, key := range []string{"RequestId", "X-Ms-Request-Id", "X-Request-Id"} {
		if id := strings.TrimSpace(header.Get(key)); id != "" {
			return id
		}
	}
	return ""
}
