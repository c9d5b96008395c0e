package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"github.com/KornAlexander/semantic-link-labs/internal/debug"
)

// Operation states reported by the Fabric and Power BI operation endpoints.
const (
	OperationNotStarted = "NotStarted"
	OperationRunning    = "Running"
	OperationSucceeded  = "Succeeded"
	OperationFailed     = "Failed"
	OperationCancelled  = "Cancelled"
)

const operationIDHeader = "x-ms-operation-id"

// LROJSON runs a long-running operation to completion and returns the body
// of its result resource.
func (n *Normalizer) LROJSON(ctx context.Context, req Request) (JSONBody, error) {
	start, rawURL, err := n.startOperation(ctx, req)
	if err != nil {
		return nil, err
	}
	if start.StatusCode != http.StatusAccepted {
		body, err := start.JSON()
		if err != nil {
			return nil, err
		}
		return JSONBody(body), nil
	}

	statusURL, err := n.operationURL(req.Audience, start)
	if err != nil {
		return nil, err
	}
	final, isResource, err := n.poll(ctx, statusURL)
	if err != nil {
		return nil, err
	}
	if isResource {
		body, err := final.JSON()
		if err != nil {
			return nil, err
		}
		return JSONBody(body), nil
	}

	resultURL, err := n.resultURL(req.Audience, statusURL, final)
	if err != nil {
		return nil, err
	}
	resp, err := n.requester.Do(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, newHTTPError(http.MethodGet, resultURL, resp)
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("operation result fetched", "url", rawURL, "result_url", resultURL, "status", resp.StatusCode)
	}
	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	return JSONBody(body), nil
}

// LROStatus runs a long-running operation to completion and returns the
// final HTTP status code, discarding the body.
func (n *Normalizer) LROStatus(ctx context.Context, req Request) (StatusCode, error) {
	start, _, err := n.startOperation(ctx, req)
	if err != nil {
		return 0, err
	}
	if start.StatusCode != http.StatusAccepted {
		return StatusCode(start.StatusCode), nil
	}

	statusURL, err := n.operationURL(req.Audience, start)
	if err != nil {
		return 0, err
	}
	final, _, err := n.poll(ctx, statusURL)
	if err != nil {
		return 0, err
	}
	return StatusCode(final.StatusCode), nil
}

func (n *Normalizer) startOperation(ctx context.Context, req Request) (*Response, string, error) {
	resp, rawURL, err := n.send(ctx, req)
	if err != nil {
		return nil, rawURL, err
	}
	accepted := resp.StatusCode == http.StatusAccepted
	switch {
	case accepted:
	case len(req.StatusCodes) > 0 && req.accepts(resp.StatusCode):
	case len(req.StatusCodes) == 0 && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated):
	default:
		return nil, rawURL, newHTTPError(req.method(), rawURL, resp)
	}
	return resp, rawURL, nil
}

// operationURL picks the status endpoint from an accepted response.
func (n *Normalizer) operationURL(audience Audience, accepted *Response) (string, error) {
	if loc := strings.TrimSpace(accepted.Header.Get("Location")); loc != "" {
		return n.requester.ResolveURL(audience, loc, nil)
	}
	if id := strings.TrimSpace(accepted.Header.Get(operationIDHeader)); id != "" {
		return n.requester.ResolveURL(audience, "/v1/operations/"+id, nil)
	}
	return "", ErrNoOperationLocation
}

func (n *Normalizer) resultURL(audience Audience, statusURL string, final *Response) (string, error) {
	if loc := strings.TrimSpace(final.Header.Get("Location")); loc != "" {
		resolved, err := n.requester.ResolveURL(audience, loc, nil)
		if err != nil {
			return "", err
		}
		if resolved != statusURL {
			return resolved, nil
		}
	}
	u, err := url.Parse(statusURL)
	if err != nil {
		return "", fmt.Errorf("invalid operation URL %q: %w", statusURL, err)
	}
	return u.JoinPath("result").String(), nil
}

// poll checks the operation at a fixed interval until it reaches a terminal
// state or the poll bound is exhausted. isResource reports that the final
// response is the finished resource rather than an operation status.
func (n *Normalizer) poll(ctx context.Context, statusURL string) (final *Response, isResource bool, err error) {
	interval := n.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxPolls := n.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	schedule := retry.WithMaxRetries(uint64(maxPolls), retry.NewConstant(interval))

	lastStatus := OperationNotStarted
	for polls := 0; ; polls++ {
		delay, stop := schedule.Next()
		if stop {
			return nil, false, &LROTimeoutError{OperationURL: statusURL, Polls: polls, LastStatus: lastStatus}
		}
		if err := n.sleep(ctx, delay); err != nil {
			return nil, false, err
		}

		resp, err := n.requester.Do(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return nil, false, err
		}
		if !resp.IsSuccess() {
			return nil, false, newHTTPError(http.MethodGet, statusURL, resp)
		}

		status, err := operationStatus(resp)
		if err != nil {
			return nil, false, err
		}
		lastStatus = status
		if debug.IsEnabled(ctx) {
			slog.Debug("operation polled", "url", statusURL, "poll", polls+1, "status", status)
		}

		switch status {
		case OperationSucceeded:
			return resp, isOperationResource(resp), nil
		case OperationFailed, OperationCancelled:
			return nil, false, &LROFailedError{OperationURL: statusURL, Status: status, Payload: failurePayload(resp.Body)}
		}
	}
}

// isOperationResource reports whether a successful poll returned a JSON
// object without a "status" field, which is the created resource itself.
func isOperationResource(resp *Response) bool {
	if len(strings.TrimSpace(string(resp.Body))) == 0 || !gjson.ValidBytes(resp.Body) {
		return false
	}
	parsed := gjson.ParseBytes(resp.Body)
	return parsed.IsObject() && !parsed.Get("status").Exists()
}

// operationStatus reads the "status" field. A 200 without a status field is
// the resource itself (some Power BI operations redirect there on
// completion) and counts as success; a 202 without one is still running.
func operationStatus(resp *Response) (string, error) {
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		if resp.StatusCode == http.StatusAccepted {
			return OperationRunning, nil
		}
		return OperationSucceeded, nil
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", errors.New("operation status response is not valid JSON")
	}
	v := gjson.GetBytes(resp.Body, "status")
	switch v.Type {
	case gjson.String:
		return normalizeOperationStatus(v.Str), nil
	case gjson.Null:
		if resp.StatusCode == http.StatusAccepted {
			return OperationRunning, nil
		}
		return OperationSucceeded, nil
	default:
		return "", fmt.Errorf("operation status must be a string, got %s", v.Type)
	}
}

func normalizeOperationStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "completed":
		return OperationSucceeded
	case "failed":
		return OperationFailed
	case "cancelled", "canceled":
		return OperationCancelled
	case "notstarted":
		return OperationNotStarted
	case "running", "inprogress":
		return OperationRunning
	default:
		return strings.TrimSpace(s)
	}
}

// failurePayload returns the "error" object of a failed operation, or the
// whole body when there is none.
func failurePayload(body []byte) map[string]any {
	raw := body
	if v := gjson.GetBytes(body, "error"); v.IsObject() {
		raw = []byte(v.Raw)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
