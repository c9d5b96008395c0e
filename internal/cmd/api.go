package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
	"github.com/KornAlexander/semantic-link-labs/internal/outfmt"
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

func newAPICmd() *cobra.Command {
	var method, audience, mode, itemsKey, body, inputFile string
	var fields, rawFields, params []string
	var statusCodes []int
	var silent bool

	cmd := &cobra.Command{
		Use:     "api <route>",
		Aliases: []string{"ap"},
		Short:   "Make raw REST calls with normalized responses",
		Long: `Make a raw call against the Fabric, Power BI, Azure or Graph REST API.

The route is relative to the audience base URL (or an absolute URL on the
same host). --mode selects how the response is normalized:

  default     one call; the JSON body
  paginated   follow continuation links; the concatenated items
  lro_json    poll a long-running operation; its result body
  lro_status  poll a long-running operation; the final status code`,
		Example: `  # List workspaces, following every page
  sll api /v1/workspaces --mode paginated

  # Power BI audience
  sll api /v1.0/myorg/groups -a powerbi --mode paginated

  # Long-running call with a body built from fields
  sll api /v1/workspaces/<ws>/items/<id>/getDefinition -X POST --mode lro_json -f format=TMDL

  # Body from a file, exact status codes
  sll api /v1/workspaces/<ws>/lakehouses -X POST -d @lakehouse.json --status-code 201 --status-code 202

  # Filter with jq
  sll api /v1/workspaces --mode paginated --query '.items[].displayName'`,
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			method = strings.ToUpper(strings.TrimSpace(method))
			if !validMethods[method] {
				return fmt.Errorf("invalid HTTP method %q: must be one of GET, POST, PUT, PATCH, DELETE", method)
			}
			m, err := api.ParseMode(mode)
			if err != nil {
				return err
			}
			aud, err := api.ParseAudience(audience)
			if err != nil {
				return err
			}
			if body != "" && inputFile != "" {
				return fmt.Errorf("cannot use both --body and --input flags")
			}

			ctx := cmdContext(cmd)
			source := body
			if inputFile != "" {
				source = "@" + inputFile
			}
			payload, err := buildRequestBody(ctx, source, fields, rawFields)
			if err != nil {
				return err
			}
			query, err := parseParams(params)
			if err != nil {
				return err
			}

			req := api.Request{
				Method:      method,
				Audience:    aud,
				Route:       args[0],
				Query:       query,
				Mode:        m,
				StatusCodes: statusCodes,
				ItemsKey:    itemsKey,
			}
			if payload != nil {
				req.Body = payload
			}

			n, client, err := getNormalizer()
			if err != nil {
				return err
			}

			if method != "GET" {
				target, err := client.ResolveURL(aud, args[0], query)
				if err != nil {
					return err
				}
				preview := &dryrun.Preview{
					Operation: "send",
					Resource:  method + " request",
					Method:    method,
					URL:       target,
					Details:   map[string]any{"mode": string(m)},
				}
				if len(statusCodes) > 0 {
					preview.Details["status_codes"] = statusCodeList(statusCodes)
				}
				if payload != nil {
					preview.Body = gjson.ParseBytes(payload).Value()
				}
				if ok, err := maybeDryRun(cmd, preview); ok {
					return err
				}
			}

			result, err := n.Normalize(ctx, req)
			if err != nil {
				return err
			}
			if silent {
				return nil
			}
			return writeResult(cmd, result)
		}),
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method (GET, POST, PUT, PATCH, DELETE)")
	cmd.Flags().StringVarP(&audience, "audience", "a", "fabric", "API audience: fabric|powerbi|azure|graph")
	cmd.Flags().StringVarP(&mode, "mode", "m", "default", "Response mode: default|paginated|lro_json|lro_status")
	cmd.Flags().StringVar(&itemsKey, "items-key", "", "Key holding the items of each page (default \"value\")")
	cmd.Flags().IntSliceVar(&statusCodes, "status-code", nil, "Acceptable status code for the initial call (repeatable)")
	cmd.Flags().StringVarP(&body, "body", "d", "", "Request body: inline JSON or @path (@- for stdin)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read request body from file (use - for stdin)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Body field as path=value (string); paths use dot syntax")
	cmd.Flags().StringArrayVarP(&rawFields, "raw-field", "F", nil, "Body field as path=value (JSON parsed)")
	cmd.Flags().StringArrayVarP(&params, "param", "P", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().BoolVarP(&silent, "silent", "s", false, "Suppress output")
	flagAlias(cmd.Flags(), "status-code", "sc")
	flagAlias(cmd.Flags(), "items-key", "ik")
	registerStaticCompletions(cmd, "mode", []string{"default", "paginated", "lro_json", "lro_status"})
	registerStaticCompletions(cmd, "audience", []string{"fabric", "powerbi", "azure", "graph"})

	return cmd
}

func registerStaticCompletions(cmd *cobra.Command, flagName string, values []string) {
	_ = cmd.RegisterFlagCompletionFunc(flagName, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
}

// writeResult renders a normalized result. Text mode prints JSON bodies
// indented and status codes bare.
func writeResult(cmd *cobra.Command, result api.Result) error {
	f := formatter(cmd)
	out := iocontext.GetIO(cmd.Context()).Out

	switch r := result.(type) {
	case api.JSONBody:
		if handled, err := f.Output(map[string]any(r)); handled {
			return err
		}
		return outfmt.WriteJSON(out, r, outfmt.IsCompact(cmd.Context()))
	case api.ItemList:
		list := []map[string]any(r)
		if list == nil {
			list = []map[string]any{}
		}
		if handled, err := f.Output(list); handled {
			return err
		}
		return outfmt.WriteJSON(out, list, outfmt.IsCompact(cmd.Context()))
	case api.StatusCode:
		if handled, err := f.Output(map[string]any{"status_code": int(r)}); handled {
			return err
		}
		_, err := fmt.Fprintln(out, int(r))
		return err
	default:
		return fmt.Errorf("unexpected result type %T", result)
	}
}

// buildRequestBody starts from source (inline JSON or @path) and applies
// -f/-F fields with sjson paths. It returns nil when there is no body.
func buildRequestBody(ctx context.Context, source string, fields, rawFields []string) ([]byte, error) {
	var body []byte
	if source != "" {
		data, err := iocontext.ReadValue(ctx, source)
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("request body is not valid JSON")
		}
		body = data
	}
	if len(fields) == 0 && len(rawFields) == 0 {
		return body, nil
	}
	if body == nil {
		body = []byte("{}")
	}

	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, key, value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	for _, field := range rawFields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		if !gjson.Valid(value) {
			return nil, fmt.Errorf("invalid JSON value for raw field %q: %s", key, value)
		}
		if body, err = sjson.SetRawBytes(body, key, []byte(value)); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return body, nil
}

// parseField parses a key=value field
func parseField(field string) (string, string, error) {
	key, value, ok := strings.Cut(field, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("invalid field format %q: must be key=value", field)
	}
	return strings.TrimSpace(key), value, nil
}

func parseParams(params []string) (url.Values, error) {
	if len(params) == 0 {
		return nil, nil
	}
	query := url.Values{}
	for _, p := range params {
		key, value, err := parseField(p)
		if err != nil {
			return nil, err
		}
		query.Add(key, value)
	}
	return query, nil
}

// statusCodeList renders codes for display.
func statusCodeList(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ", ")
}
