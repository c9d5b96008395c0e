package api

import (
	"context"
	"time"
)

const (
	// DefaultPollInterval is the fixed sleep between LRO status checks.
	DefaultPollInterval = 1 * time.Second
	// DefaultMaxPolls bounds an LRO wait to roughly 30 minutes at the default interval.
	DefaultMaxPolls = 1800
	// DefaultMaxPages bounds a paginated listing.
	DefaultMaxPages = 1000
)

// Sleeper waits for d or returns early with the context's error.
type Sleeper func(ctx context.Context, d time.Duration) error

// Normalizer turns a Request into one of the four Result shapes.
//
// A Normalizer holds no per-call state; it is safe for concurrent use when
// its Requester is.
type Normalizer struct {
	requester    Requester
	PollInterval time.Duration
	MaxPolls     int
	MaxPages     int
	Sleep        Sleeper
}

// NewNormalizer returns a Normalizer with the default poll and page bounds.
func NewNormalizer(r Requester) *Normalizer {
	return &Normalizer{
		requester:    r,
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
		MaxPages:     DefaultMaxPages,
		Sleep:        sleepWithContext,
	}
}

// Normalize dispatches on req.Mode. An unknown mode fails with
// *UnsupportedModeError before any HTTP call is made. On error the Result
// is always nil.
func (n *Normalizer) Normalize(ctx context.Context, req Request) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeDefault
	}

	var (
		result Result
		err    error
	)
	switch mode {
	case ModeDefault:
		result, err = n.Get(ctx, req)
	case ModePaginated:
		result, err = n.List(ctx, req)
	case ModeLROJSON:
		result, err = n.LROJSON(ctx, req)
	case ModeLROStatus:
		result, err = n.LROStatus(ctx, req)
	default:
		return nil, &UnsupportedModeError{Mode: mode}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get issues one call and returns the parsed body.
func (n *Normalizer) Get(ctx context.Context, req Request) (JSONBody, error) {
	resp, rawURL, err := n.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if !req.accepts(resp.StatusCode) {
		return nil, newHTTPError(req.method(), rawURL, resp)
	}
	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	return JSONBody(body), nil
}

func (n *Normalizer) send(ctx context.Context, req Request) (*Response, string, error) {
	rawURL, err := n.requester.ResolveURL(req.Audience, req.Route, req.Query)
	if err != nil {
		return nil, "", err
	}
	body, err := marshalBody(req.Body)
	if err != nil {
		return nil, "", err
	}
	resp, err := n.requester.Do(ctx, req.method(), rawURL, body)
	if err != nil {
		return nil, rawURL, err
	}
	return resp, rawURL, nil
}

func (n *Normalizer) sleep(ctx context.Context, d time.Duration) error {
	if n.Sleep != nil {
		return n.Sleep(ctx, d)
	}
	return sleepWithContext(ctx, d)
}
