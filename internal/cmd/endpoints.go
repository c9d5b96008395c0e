package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
	"github.com/KornAlexander/semantic-link-labs/internal/resolve"
)

var endpointColumns = []frame.Column{
	{Header: "ID", Path: "id"},
	{Header: "NAME", Path: "name"},
	{Header: "STATE", Path: "provisioningState"},
	{Header: "CONNECTION", Path: "connectionState.status"},
	{Header: "SUBRESOURCE", Path: "targetSubresourceType"},
	{Header: "TARGET", Path: "targetPrivateLinkResourceId"},
}

func newEndpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"endpoint", "mpe"},
		Short:   "Manage workspace managed private endpoints",
	}

	cmd.AddCommand(newEndpointsListCmd())
	cmd.AddCommand(newEndpointsCreateCmd())
	cmd.AddCommand(newEndpointsDeleteCmd())
	cmd.AddCommand(newEndpointsFQDNsCmd())

	return cmd
}

func newEndpointsListCmd() *cobra.Command {
	var workspace string

	cmd := NewListCommand(ListConfig[api.ManagedPrivateEndpoint]{
		Use:          "list",
		Aliases:      []string{"ls"},
		Short:        "List managed private endpoints",
		Columns:      endpointColumns,
		EmptyMessage: "No managed private endpoints found",
		Fetch: func(ctx context.Context, n *api.Normalizer, _ []string) ([]api.ManagedPrivateEndpoint, error) {
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return nil, err
			}
			return n.PrivateEndpoints().List(ctx, wsID)
		},
	})

	addWorkspaceFlag(cmd, &workspace)
	return cmd
}

func newEndpointsCreateCmd() *cobra.Command {
	var workspace string
	var req api.CreatePrivateEndpointRequest

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a managed private endpoint",
		Long: strings.TrimSpace(`
Create a managed private endpoint. The connection must then be approved on
the target resource, so new endpoints usually report a Pending connection.`),
		Example: strings.TrimSpace(`
  sll endpoints create sql-east -w Sales \
    --target /subscriptions/.../providers/Microsoft.Sql/servers/east \
    --subresource sqlServer
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			n, client, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}

			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "create",
				Resource:  "managed private endpoint " + req.Name,
				Method:    http.MethodPost,
				URL:       previewURL(client, api.AudienceFabric, fmt.Sprintf("/v1/workspaces/%s/managedPrivateEndpoints", wsID)),
				Body:      req,
			}); ok {
				return err
			}

			ep, err := n.PrivateEndpoints().Create(ctx, wsID, req)
			if err != nil {
				return err
			}
			f := formatter(cmd)
			f.Status("Created managed private endpoint %s", ep.Name)
			return f.KeyValues(ep, [][2]string{
				{"ID", ep.ID},
				{"Name", ep.Name},
				{"State", ep.ProvisioningState},
				{"Connection", ep.ConnectionState.Status},
			})
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVar(&req.TargetPrivateLinkResourceID, "target", "", "Azure resource ID of the private link target (required)")
	cmd.Flags().StringVar(&req.TargetSubresourceType, "subresource", "", "Target subresource type, e.g. sqlServer or blob (required)")
	cmd.Flags().StringVar(&req.RequestMessage, "message", "", "Approval request message (max 140 characters)")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("subresource")
	return cmd
}

func newEndpointsDeleteCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:     "delete <name-or-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a managed private endpoint",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, client, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}
			endpointID, err := resolveEndpointID(ctx, n, wsID, args[0])
			if err != nil {
				return err
			}

			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "delete",
				Resource:  "managed private endpoint " + args[0],
				Method:    http.MethodDelete,
				URL:       previewURL(client, api.AudienceFabric, fmt.Sprintf("/v1/workspaces/%s/managedPrivateEndpoints/%s", wsID, endpointID)),
			}); ok {
				return err
			}

			confirmed, err := confirmAction(cmd, confirmOptions{
				Prompt:        fmt.Sprintf("Delete managed private endpoint %s? [y/N]: ", args[0]),
				CancelMessage: "Cancelled.",
			})
			if err != nil || !confirmed {
				return err
			}

			if err := n.PrivateEndpoints().Delete(ctx, wsID, endpointID); err != nil {
				return err
			}
			f := formatter(cmd)
			if handled, err := f.Output(map[string]any{"id": endpointID, "deleted": true}); handled {
				return err
			}
			f.Status("Deleted managed private endpoint %s", args[0])
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	return cmd
}

func newEndpointsFQDNsCmd() *cobra.Command {
	var workspace string

	cmd := NewListCommand(ListConfig[api.TargetFQDN]{
		Use:          "fqdns <name-or-id>",
		Short:        "List the target FQDNs of a managed private endpoint",
		Args:         cobra.ExactArgs(1),
		Columns:      []frame.Column{{Header: "FQDN", Path: "fqdn"}},
		EmptyMessage: "No FQDNs found",
		Fetch: func(ctx context.Context, n *api.Normalizer, args []string) ([]api.TargetFQDN, error) {
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return nil, err
			}
			endpointID, err := resolveEndpointID(ctx, n, wsID, args[0])
			if err != nil {
				return nil, err
			}
			return n.PrivateEndpoints().ListFQDNs(ctx, wsID, endpointID)
		},
	})

	addWorkspaceFlag(cmd, &workspace)
	return cmd
}

func resolveEndpointID(ctx context.Context, n *api.Normalizer, workspaceID, query string) (string, error) {
	if resolve.IsUUID(query) {
		return resolve.Resolve("managed private endpoint", query, nil)
	}
	endpoints, err := n.PrivateEndpoints().List(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	named := make([]resolve.Named, 0, len(endpoints))
	for _, ep := range endpoints {
		named = append(named, resolve.Named{ID: ep.ID, Name: ep.Name})
	}
	return resolve.Resolve("managed private endpoint", query, named)
}
