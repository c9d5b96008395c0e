package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tomnomnom/linkheader"

	"github.com/KornAlexander/semantic-link-labs/internal/debug"
)

// Continuation fields, in order of precedence.
const (
	continuationURIField   = "continuationUri"
	continuationTokenField = "continuationToken"
	odataNextLinkField     = "@odata.nextLink"
)

// List follows continuation references until the service signals no
// further pages and returns every page's items in fetch order.
func (n *Normalizer) List(ctx context.Context, req Request) (ItemList, error) {
	firstURL, err := n.requester.ResolveURL(req.Audience, req.Route, req.Query)
	if err != nil {
		return nil, err
	}
	body, err := marshalBody(req.Body)
	if err != nil {
		return nil, err
	}

	maxPages := n.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	method := req.method()
	key := req.itemsKey()

	seen := map[string]struct{}{firstURL: {}}
	items := ItemList{}
	pageURL, pageMethod, pageBody := firstURL, method, body

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, &PaginationError{URL: pageURL, Page: page, Reason: fmt.Sprintf("exceeded the maximum of %d pages", maxPages)}
		}

		resp, err := n.requester.Do(ctx, pageMethod, pageURL, pageBody)
		if err != nil {
			return nil, err
		}
		if (page == 1 && !req.accepts(resp.StatusCode)) || (page > 1 && !resp.IsSuccess()) {
			return nil, newHTTPError(pageMethod, pageURL, resp)
		}

		pageItems, err := decodePageItems(resp.Body, key)
		if err != nil {
			return nil, &PaginationError{URL: pageURL, Page: page, Reason: err.Error()}
		}
		items = append(items, pageItems...)

		next, sameRequest, err := continuation(resp, firstURL)
		if err != nil {
			return nil, &PaginationError{URL: pageURL, Page: page, Reason: err.Error()}
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("page fetched", "page", page, "items", len(pageItems), "total", len(items), "has_more", next != "")
		}
		if next == "" {
			return items, nil
		}

		nextURL, err := n.requester.ResolveURL(req.Audience, next, nil)
		if err != nil {
			return nil, &PaginationError{URL: pageURL, Page: page, Reason: fmt.Sprintf("invalid continuation reference: %v", err)}
		}
		if _, dup := seen[nextURL]; dup {
			return nil, &PaginationError{URL: pageURL, Page: page, Reason: fmt.Sprintf("continuation reference %q repeats a previous page", next)}
		}
		seen[nextURL] = struct{}{}

		pageURL = nextURL
		if sameRequest {
			pageMethod, pageBody = method, body
		} else {
			pageMethod, pageBody = http.MethodGet, nil
		}
	}
}

func decodePageItems(body []byte, key string) (ItemList, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("page body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("page body is not a JSON object")
	}
	field := root.Get(gjson.Escape(key))
	if !field.Exists() || field.Type == gjson.Null {
		return nil, nil
	}
	if !field.IsArray() {
		return nil, fmt.Errorf("%q is not an array", key)
	}

	elems := field.Array()
	out := make(ItemList, 0, len(elems))
	for i, elem := range elems {
		if !elem.IsObject() {
			return nil, fmt.Errorf("%s[%d] is not an object", key, i)
		}
		var item map[string]any
		if err := json.Unmarshal([]byte(elem.Raw), &item); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// continuation returns the next page reference, or "" when the listing is
// complete. sameRequest is true when the next page must re-issue the
// original method and body (token-only continuation).
func continuation(resp *Response, firstURL string) (next string, sameRequest bool, err error) {
	root := gjson.ParseBytes(resp.Body)

	uri, err := stringField(root, continuationURIField)
	if err != nil {
		return "", false, err
	}
	if uri != "" {
		return uri, false, nil
	}

	token, err := stringField(root, continuationTokenField)
	if err != nil {
		return "", false, err
	}
	if token != "" {
		u, err := url.Parse(firstURL)
		if err != nil {
			return "", false, err
		}
		q := u.Query()
		q.Set(continuationTokenField, token)
		u.RawQuery = q.Encode()
		return u.String(), true, nil
	}

	link, err := stringField(root, odataNextLinkField)
	if err != nil {
		return "", false, err
	}
	if link != "" {
		return link, false, nil
	}

	return nextFromLinkHeader(resp.Header), false, nil
}

func stringField(root gjson.Result, name string) (string, error) {
	if !root.IsObject() {
		return "", nil
	}
	v := root.Get(gjson.Escape(name))
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return strings.TrimSpace(v.Str), nil
	default:
		return "", fmt.Errorf("%q must be a string, got %s", name, v.Type)
	}
}

// nextFromLinkHeader extracts the rel="next" target of an RFC 8288 Link header.
// A link may carry several space-separated relation types.
func nextFromLinkHeader(h http.Header) string {
	for _, link := range linkheader.ParseMultiple(h.Values("Link")) {
		for _, rel := range strings.Fields(link.Rel) {
			if strings.EqualFold(rel, "next") {
				return strings.TrimSpace(link.URL)
			}
		}
	}
	return ""
}
