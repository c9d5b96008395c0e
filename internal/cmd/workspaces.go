package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
)

var workspaceColumns = []frame.Column{
	{Header: "ID", Path: "id"},
	{Header: "NAME", Path: "displayName"},
	{Header: "TYPE", Path: "type"},
	{Header: "CAPACITY", Path: "capacityId"},
}

func newWorkspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"workspace", "ws"},
		Short:   "List and inspect workspaces",
	}

	cmd.AddCommand(newWorkspacesListCmd())
	cmd.AddCommand(newWorkspacesGetCmd())

	return cmd
}

func newWorkspacesListCmd() *cobra.Command {
	return NewListCommand(ListConfig[api.Workspace]{
		Use:          "list",
		Aliases:      []string{"ls"},
		Short:        "List workspaces the caller can access",
		Columns:      workspaceColumns,
		EmptyMessage: "No workspaces found",
		Example: strings.TrimSpace(`
  sll workspaces list
  sll workspaces list -o json --query '.items[].displayName'
`),
		Fetch: func(ctx context.Context, n *api.Normalizer, _ []string) ([]api.Workspace, error) {
			return n.Workspaces().List(ctx)
		},
	})
}

func newWorkspacesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <name-or-id>",
		Aliases: []string{"g"},
		Short:   "Get a workspace by name or ID",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, _, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			id, err := resolveWorkspaceID(ctx, n, args[0])
			if err != nil {
				return err
			}
			ws, err := n.Workspaces().Get(ctx, id)
			if err != nil {
				return err
			}
			return formatter(cmd).KeyValues(ws, [][2]string{
				{"ID", ws.ID},
				{"Name", ws.DisplayName},
				{"Type", ws.Type},
				{"Description", ws.Description},
				{"Capacity", ws.CapacityID},
				{"Domain", ws.DomainID},
			})
		}),
	}
}
