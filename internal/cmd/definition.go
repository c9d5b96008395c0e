package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
)

var definitionPartColumns = []frame.Column{
	{Header: "PATH", Path: "path"},
	{Header: "BYTES", Path: "bytes", Format: frame.FormatBytes},
	{Header: "JSON", Path: "json", Format: frame.FormatBool},
}

func newDefinitionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definition",
		Aliases: []string{"def"},
		Short:   "Get and update item definitions",
	}

	cmd.AddCommand(newDefinitionGetCmd())
	cmd.AddCommand(newDefinitionUpdateCmd())

	return cmd
}

type partSummary struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	JSON  bool   `json:"json"`
}

func newDefinitionGetCmd() *cobra.Command {
	var workspace, itemType, format, part string
	var decode bool

	cmd := &cobra.Command{
		Use:   "get <item>",
		Short: "Fetch an item definition",
		Long: strings.TrimSpace(`
Fetch the public definition of an item. Text output lists the parts; JSON
output is the definition as returned (base64 payloads) unless --decode is
given. --part prints one decoded part to stdout.`),
		Example: strings.TrimSpace(`
  sll definition get Orders -w Sales
  sll definition get Model -w Sales --format TMDL --decode -o json
  sll definition get "Sales Report" -w Sales --part definition.pbir
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			var t api.ItemType
			if itemType != "" {
				var err error
				if t, err = parseItemTypeFlag(itemType); err != nil {
					return err
				}
			}
			n, _, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}
			itemID, err := resolveItemID(ctx, n, wsID, t, args[0])
			if err != nil {
				return err
			}

			def, err := n.Definitions().Get(ctx, wsID, itemID, format)
			if err != nil {
				return err
			}

			if part != "" {
				p, ok := def.Part(part)
				if !ok {
					return fmt.Errorf("definition has no part %q", part)
				}
				data, err := p.Decode()
				if err != nil {
					return err
				}
				_, err = iocontext.GetIO(ctx).Out.Write(data)
				return err
			}

			decoded, err := def.DecodeParts()
			if err != nil {
				return err
			}
			f := formatter(cmd)
			var payload any = def
			if decode {
				payload = decoded
			}
			if handled, err := f.Output(payload); handled {
				return err
			}

			summaries := make([]partSummary, 0, len(decoded))
			for _, d := range decoded {
				summaries = append(summaries, partSummary{Path: d.Path, Bytes: len(d.Text), JSON: d.JSON != nil})
			}
			fr, err := frame.Build(summaries, definitionPartColumns)
			if err != nil {
				return err
			}
			if err := f.Frame(fr, "Definition has no parts"); err != nil {
				return err
			}
			if decode {
				out := iocontext.GetIO(ctx).Out
				for _, d := range decoded {
					_, _ = fmt.Fprintf(out, "\n--- %s\n%s\n", d.Path, strings.TrimRight(d.Text, "\n"))
				}
			}
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "Item type, to narrow name lookup")
	cmd.Flags().StringVar(&format, "format", "", "Definition format (e.g. TMDL, PBIR)")
	cmd.Flags().BoolVar(&decode, "decode", false, "Decode base64 part payloads")
	cmd.Flags().StringVar(&part, "part", "", "Print one decoded part by path")
	return cmd
}

func newDefinitionUpdateCmd() *cobra.Command {
	var workspace, itemType, file string
	var updateMetadata bool

	cmd := &cobra.Command{
		Use:   "update <item>",
		Short: "Replace an item definition",
		Example: strings.TrimSpace(`
  sll definition update Orders -w Sales --file definition.json
  sll definition get Orders -w Sales -o json | sll definition update Orders -w Sales --file -
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			var t api.ItemType
			if itemType != "" {
				var err error
				if t, err = parseItemTypeFlag(itemType); err != nil {
					return err
				}
			}
			ctx := cmdContext(cmd)
			def, err := readDefinition(ctx, file)
			if err != nil {
				return err
			}

			n, client, err := getNormalizer()
			if err != nil {
				return err
			}
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}
			itemID, err := resolveItemID(ctx, n, wsID, t, args[0])
			if err != nil {
				return err
			}

			paths := make([]string, 0, len(def.Parts))
			for _, p := range def.Parts {
				paths = append(paths, p.Path)
			}
			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "update definition of",
				Resource:  itemID,
				Method:    http.MethodPost,
				URL:       previewURL(client, api.AudienceFabric, fmt.Sprintf("/v1/workspaces/%s/items/%s/updateDefinition", wsID, itemID)),
				Details: map[string]any{
					"parts":           strings.Join(paths, ", "),
					"update_metadata": updateMetadata,
				},
			}); ok {
				return err
			}

			status, err := n.Definitions().Update(ctx, wsID, itemID, *def, updateMetadata)
			if err != nil {
				return err
			}
			f := formatter(cmd)
			if handled, err := f.Output(map[string]any{"id": itemID, "status_code": int(status)}); handled {
				return err
			}
			f.Status("Updated definition of %s (%d parts, status %d)", args[0], len(def.Parts), int(status))
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "Item type, to narrow name lookup")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Definition JSON: path, @path or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&updateMetadata, "update-metadata", false, "Also apply the .platform metadata part")
	return cmd
}
