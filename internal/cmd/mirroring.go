package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
)

var tableMirroringColumns = []frame.Column{
	{Header: "SCHEMA", Path: "sourceSchemaName"},
	{Header: "TABLE", Path: "sourceTableName"},
	{Header: "STATUS", Path: "status"},
	{Header: "ROWS", Path: "metrics.processedRows"},
	{Header: "PROCESSED", Path: "metrics.processedBytes", Format: frame.FormatBytes},
	{Header: "LAST SYNC", Path: "metrics.lastSyncDateTime"},
}

func newMirroringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mirroring",
		Aliases: []string{"mirror", "mir"},
		Short:   "Inspect and control mirrored databases",
	}

	cmd.AddCommand(newMirroringStatusCmd())
	cmd.AddCommand(newMirroringTablesCmd())
	cmd.AddCommand(newMirroringActionCmd("start", "Start replication", "Started"))
	cmd.AddCommand(newMirroringActionCmd("stop", "Stop replication", "Stopped"))

	return cmd
}

// mirroredDatabase resolves the workspace and database arguments shared by
// every mirroring subcommand.
func mirroredDatabase(ctx context.Context, n *api.Normalizer, workspace, database string) (string, string, error) {
	wsID, err := resolveWorkspaceID(ctx, n, workspace)
	if err != nil {
		return "", "", err
	}
	dbID, err := resolveItemID(ctx, n, wsID, api.ItemTypeMirroredDatabase, database)
	if err != nil {
		return "", "", err
	}
	return wsID, dbID, nil
}

func newMirroringStatusCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "status <database>",
		Short: "Show the mirroring state of a database",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, _, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, dbID, err := mirroredDatabase(ctx, n, workspace, args[0])
			if err != nil {
				return err
			}
			status, err := n.Mirroring().Status(ctx, wsID, dbID)
			if err != nil {
				return err
			}
			return formatter(cmd).KeyValues(status, [][2]string{
				{"Database", args[0]},
				{"Status", status.Status},
			})
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	return cmd
}

func newMirroringTablesCmd() *cobra.Command {
	var workspace string

	cmd := NewListCommand(ListConfig[api.TableMirroringStatus]{
		Use:          "tables <database>",
		Short:        "Show the mirroring state of each source table",
		Args:         cobra.ExactArgs(1),
		Columns:      tableMirroringColumns,
		EmptyMessage: "No mirrored tables found",
		Fetch: func(ctx context.Context, n *api.Normalizer, args []string) ([]api.TableMirroringStatus, error) {
			wsID, dbID, err := mirroredDatabase(ctx, n, workspace, args[0])
			if err != nil {
				return nil, err
			}
			return n.Mirroring().Tables(ctx, wsID, dbID)
		},
	})

	addWorkspaceFlag(cmd, &workspace)
	return cmd
}

func newMirroringActionCmd(action, short, done string) *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   action + " <database>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, client, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, dbID, err := mirroredDatabase(ctx, n, workspace, args[0])
			if err != nil {
				return err
			}

			route := fmt.Sprintf("/v1/workspaces/%s/%s/%s/%sMirroring", wsID, api.ItemTypeMirroredDatabase.Path, dbID, action)
			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: action + " mirroring for",
				Resource:  args[0],
				Method:    http.MethodPost,
				URL:       previewURL(client, api.AudienceFabric, route),
			}); ok {
				return err
			}

			switch action {
			case "start":
				err = n.Mirroring().Start(ctx, wsID, dbID)
			default:
				err = n.Mirroring().Stop(ctx, wsID, dbID)
			}
			if err != nil {
				return err
			}

			f := formatter(cmd)
			if handled, err := f.Output(map[string]any{"id": dbID, "action": action, "ok": true}); handled {
				return err
			}
			f.Status("%s mirroring for %s", done, args[0])
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Long = short + " for a mirrored database."
	return cmd
}
