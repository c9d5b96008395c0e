package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
)

var itemColumns = []frame.Column{
	{Header: "ID", Path: "id"},
	{Header: "NAME", Path: "displayName"},
	{Header: "TYPE", Path: "type"},
	{Header: "DESCRIPTION", Path: "description"},
}

func newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item", "it"},
		Short:   "List, create and delete workspace items",
		Long:    "Items are typed Fabric artifacts: " + strings.Join(api.ItemTypeNames(), ", ") + ".",
	}

	cmd.AddCommand(newItemsListCmd())
	cmd.AddCommand(newItemsCreateCmd())
	cmd.AddCommand(newItemsDeleteCmd())

	return cmd
}

// addWorkspaceFlag registers the required --workspace flag.
func addWorkspaceFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "workspace", "w", "", "Workspace name or ID (required)")
	_ = cmd.MarkFlagRequired("workspace")
	flagAlias(cmd.Flags(), "workspace", "ws")
}

func newItemsListCmd() *cobra.Command {
	var workspace, itemType string

	cmd := NewListCommand(ListConfig[api.Item]{
		Use:          "list",
		Aliases:      []string{"ls"},
		Short:        "List items in a workspace",
		Columns:      itemColumns,
		EmptyMessage: "No items found",
		Example: strings.TrimSpace(`
  sll items list -w Sales
  sll items list -w Sales --type Lakehouse -o json
`),
		Fetch: func(ctx context.Context, n *api.Normalizer, _ []string) ([]api.Item, error) {
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return nil, err
			}
			if itemType == "" {
				return n.Items().ListAll(ctx, wsID, "")
			}
			t, err := parseItemTypeFlag(itemType)
			if err != nil {
				return nil, err
			}
			return n.Items().List(ctx, wsID, t)
		},
	})

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "Item type (e.g. Lakehouse, Report)")
	return cmd
}

func newItemsCreateCmd() *cobra.Command {
	var workspace, itemType, description, definitionFile string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an item and wait for provisioning",
		Args:  cobra.ExactArgs(1),
		Example: strings.TrimSpace(`
  sll items create Staging -w Sales --type Lakehouse
  sll items create Orders -w Sales --type DataPipeline --definition @pipeline.json
`),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			t, err := parseItemTypeFlag(itemType)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			opts := api.CreateItemOptions{Description: description}
			if definitionFile != "" {
				def, err := readDefinition(ctx, definitionFile)
				if err != nil {
					return err
				}
				opts.Definition = def
			}

			n, client, err := getNormalizer()
			if err != nil {
				return err
			}
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}

			preview := &dryrun.Preview{
				Operation: "create",
				Resource:  t.Name,
				Method:    http.MethodPost,
				URL:       previewURL(client, api.AudienceFabric, fmt.Sprintf("/v1/workspaces/%s/%s", wsID, t.Path)),
				Details:   map[string]any{"name": args[0], "workspace": wsID},
			}
			if opts.Definition != nil {
				preview.Details["parts"] = len(opts.Definition.Parts)
			}
			if ok, err := maybeDryRun(cmd, preview); ok {
				return err
			}

			item, err := n.Items().Create(ctx, wsID, t, args[0], opts)
			if err != nil {
				return err
			}
			f := formatter(cmd)
			f.Status("Created %s %s", t.Name, item.DisplayName)
			return f.KeyValues(item, [][2]string{
				{"ID", item.ID},
				{"Name", item.DisplayName},
				{"Type", item.Type},
			})
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "Item type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&description, "description", "", "Item description")
	cmd.Flags().StringVar(&definitionFile, "definition", "", "Initial definition: path, @path or - for stdin")
	flagAlias(cmd.Flags(), "description", "desc")
	return cmd
}

func newItemsDeleteCmd() *cobra.Command {
	var (
		workspace, itemType string
		concurrency         int
	)

	cmd := &cobra.Command{
		Use:     "delete <name-or-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete one or more items",
		Args:    cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			t, err := parseItemTypeFlag(itemType)
			if err != nil {
				return err
			}
			n, client, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}
			itemIDs := make([]string, 0, len(args))
			for _, arg := range args {
				itemID, err := resolveItemID(ctx, n, wsID, t, arg)
				if err != nil {
					return err
				}
				itemIDs = append(itemIDs, itemID)
			}

			preview := &dryrun.Preview{
				Operation: "delete",
				Resource:  t.Name,
				Method:    http.MethodDelete,
				URL:       previewURL(client, api.AudienceFabric, fmt.Sprintf("/v1/workspaces/%s/%s/%s", wsID, t.Path, itemIDs[0])),
				Details:   map[string]any{"id": itemIDs[0], "workspace": wsID},
			}
			prompt := fmt.Sprintf("Delete %s %s? [y/N]: ", t.Name, args[0])
			if len(itemIDs) > 1 {
				preview.URL = previewURL(client, api.AudienceFabric, fmt.Sprintf("/v1/workspaces/%s/%s/{id}", wsID, t.Path))
				preview.Details = map[string]any{"ids": strings.Join(itemIDs, ", "), "workspace": wsID}
				prompt = fmt.Sprintf("Delete %d %s items? [y/N]: ", len(itemIDs), t.Name)
			}
			if ok, err := maybeDryRun(cmd, preview); ok {
				return err
			}

			confirmed, err := confirmAction(cmd, confirmOptions{Prompt: prompt, CancelMessage: "Cancelled."})
			if err != nil || !confirmed {
				return err
			}

			f := formatter(cmd)
			if len(itemIDs) == 1 {
				if err := n.Items().Delete(ctx, wsID, t, itemIDs[0]); err != nil {
					return err
				}
				if handled, err := f.Output(map[string]any{"id": itemIDs[0], "type": t.Name, "deleted": true}); handled {
					return err
				}
				f.Status("Deleted %s %s", t.Name, itemIDs[0])
				return nil
			}

			var progress io.Writer
			if !isJSON(cmd) {
				progress = iocontext.GetIO(ctx).ErrOut
			}
			results := runBulk(ctx, itemIDs, concurrency, progress, func(ctx context.Context, id string) error {
				return n.Items().Delete(ctx, wsID, t, id)
			})

			records := make([]map[string]any, 0, len(results))
			for _, r := range results {
				rec := map[string]any{"id": r.ID, "type": t.Name, "deleted": r.Err == nil}
				if r.Err != nil {
					rec["error"] = r.Err.Error()
				}
				records = append(records, rec)
			}
			handled, err := f.Output(records)
			if err != nil {
				return err
			}
			if !handled {
				for _, r := range results {
					if r.Err != nil {
						f.Status("Failed to delete %s %s: %v", t.Name, r.ID, r.Err)
						continue
					}
					f.Status("Deleted %s %s", t.Name, r.ID)
				}
			}
			if failed := countFailures(results); failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(results))
			}
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "Item type (required)")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaultConcurrency, "Parallel deletions when several items are given")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// readDefinition loads an item definition from a file, "@file" or "-".
// Both {"definition": {...}} and the bare {"parts": [...]} form are accepted.
func readDefinition(ctx context.Context, source string) (*api.ItemDefinition, error) {
	if !strings.HasPrefix(source, "@") {
		source = "@" + source
	}
	data, err := iocontext.ReadValue(ctx, source)
	if err != nil {
		return nil, err
	}
	var doc struct {
		api.ItemDefinition
		Definition *api.ItemDefinition `json:"definition"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid definition JSON: %w", err)
	}
	def := doc.ItemDefinition
	if doc.Definition != nil {
		def = *doc.Definition
	}
	if len(def.Parts) == 0 {
		return nil, api.NewStructuredError(api.ErrValidation, "definition has no parts")
	}
	return &def, nil
}
