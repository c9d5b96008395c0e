package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
)

// ListConfig defines how a list command behaves
type ListConfig[T any] struct {
	Use          string
	Aliases      []string
	Short        string
	Long         string
	Example      string
	Args         cobra.PositionalArgs
	Columns      []frame.Column
	EmptyMessage string
	// Fetch returns every item; pagination is handled by the Normalizer.
	Fetch func(ctx context.Context, n *api.Normalizer, args []string) ([]T, error)
}

// NewListCommand creates a cobra command from ListConfig. JSON modes emit
// the items themselves; text mode renders the configured columns.
func NewListCommand[T any](cfg ListConfig[T]) *cobra.Command {
	args := cfg.Args
	if args == nil {
		args = cobra.NoArgs
	}
	return &cobra.Command{
		Use:     cfg.Use,
		Aliases: cfg.Aliases,
		Short:   cfg.Short,
		Long:    cfg.Long,
		Example: cfg.Example,
		Args:    args,
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, _, err := getNormalizer()
			if err != nil {
				return err
			}
			items, err := cfg.Fetch(cmdContext(cmd), n, args)
			if err != nil {
				return err
			}
			if items == nil {
				items = make([]T, 0)
			}

			f := formatter(cmd)
			if handled, err := f.Output(items); handled {
				return err
			}
			fr, err := frame.Build(items, cfg.Columns)
			if err != nil {
				return err
			}
			return f.Frame(fr, cfg.EmptyMessage)
		}),
	}
}
