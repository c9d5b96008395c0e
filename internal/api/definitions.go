package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// PayloadTypeInlineBase64 is the only payload encoding Fabric uses for definition parts.
const PayloadTypeInlineBase64 = "InlineBase64"

// DecodedPart is a definition part with its payload decoded. JSON is set
// when the payload parses as JSON; Text always holds the decoded bytes.
type DecodedPart struct {
	Path string `json:"path"`
	Text string `json:"text"`
	JSON any    `json:"json,omitempty"`
}

func itemDefinitionPath(workspaceID, itemID, action string) string {
	return workspacePath(workspaceID) + "/items/" + url.PathEscape(strings.TrimSpace(itemID)) + "/" + action
}

// Get fetches the full definition of an item. format is optional
// (for example "TMDL" or "PBIR").
func (s DefinitionsService) Get(ctx context.Context, workspaceID, itemID, format string) (*ItemDefinition, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("item", itemID); err != nil {
		return nil, err
	}
	req := Request{
		Method: http.MethodPost,
		Route:  itemDefinitionPath(workspaceID, itemID, "getDefinition"),
	}
	if format != "" {
		req.Query = url.Values{"format": {format}}
	}

	body, err := s.LROJSON(ctx, req)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Definition ItemDefinition `json:"definition"`
	}
	if err := decodeInto(body, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Definition, nil
}

// Update replaces an item's definition and returns the final status code.
func (s DefinitionsService) Update(ctx context.Context, workspaceID, itemID string, def ItemDefinition, updateMetadata bool) (StatusCode, error) {
	if err := requireID("workspace", workspaceID); err != nil {
		return 0, err
	}
	if err := requireID("item", itemID); err != nil {
		return 0, err
	}
	if len(def.Parts) == 0 {
		return 0, NewStructuredError(ErrValidation, "definition has no parts")
	}
	req := Request{
		Method: http.MethodPost,
		Route:  itemDefinitionPath(workspaceID, itemID, "updateDefinition"),
		Body:   map[string]any{"definition": def},
	}
	if updateMetadata {
		req.Query = url.Values{"updateMetadata": {"true"}}
	}
	return s.LROStatus(ctx, req)
}

// Part returns the part at path, matched case-insensitively.
func (d *ItemDefinition) Part(path string) (*DefinitionPart, bool) {
	for i := range d.Parts {
		if strings.EqualFold(d.Parts[i].Path, path) {
			return &d.Parts[i], true
		}
	}
	return nil, false
}

// Decode returns the raw payload bytes of the part.
func (p DefinitionPart) Decode() ([]byte, error) {
	if p.PayloadType != "" && p.PayloadType != PayloadTypeInlineBase64 {
		return nil, fmt.Errorf("part %s: unsupported payload type %q", p.Path, p.PayloadType)
	}
	data, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("part %s: invalid base64 payload: %w", p.Path, err)
	}
	return data, nil
}

// SetPayload replaces the part's payload with data, base64 encoded.
func (p *DefinitionPart) SetPayload(data []byte) {
	p.Payload = base64.StdEncoding.EncodeToString(data)
	p.PayloadType = PayloadTypeInlineBase64
}

// DecodeParts decodes every part of the definition in order.
func (d *ItemDefinition) DecodeParts() ([]DecodedPart, error) {
	out := make([]DecodedPart, 0, len(d.Parts))
	for _, p := range d.Parts {
		data, err := p.Decode()
		if err != nil {
			return nil, err
		}
		dp := DecodedPart{Path: p.Path, Text: string(data)}
		if gjson.ValidBytes(data) {
			dp.Text = string(pretty.Pretty(data))
			dp.JSON = gjson.ParseBytes(data).Value()
		}
		out = append(out, dp)
	}
	return out, nil
}
