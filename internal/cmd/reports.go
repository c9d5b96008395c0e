package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"reports", "rpt"},
		Short:   "Report operations",
	}

	cmd.AddCommand(newReportSetPerspectiveCmd())
	cmd.AddCommand(newReportFixCmd(reportFixSpec{
		use:   "fix-page-size",
		short: "Resize pages on the default 1280x720 canvas to 1920x1080",
		fixer: func() api.ReportFixer { return api.PageSizeFixer() },
		noun:  "page",
	}))
	cmd.AddCommand(newReportFixCmd(reportFixSpec{
		use:   "fix-hide-visual-filters",
		short: "Hide visual-level filters from the filter pane",
		fixer: func() api.ReportFixer { return api.HideVisualFiltersFixer() },
		noun:  "visual",
	}))
	cmd.AddCommand(newReportFixPieChartsCmd())
	cmd.AddCommand(newReportFixCmd(reportFixSpec{
		use:   "fix-column-charts",
		short: "Apply column chart formatting rules",
		long: `Remove axis titles and value axis labels, show data labels and hide
vertical gridlines on every column and clustered column chart.`,
		fixer: func() api.ReportFixer { return api.ColumnChartFixer() },
		noun:  "column chart",
	}))

	return cmd
}

func newReportSetPerspectiveCmd() *cobra.Command {
	var workspace, perspective string

	cmd := &cobra.Command{
		Use:   "set-perspective <report>",
		Short: "Point a thin report at a semantic model perspective",
		Long: strings.TrimSpace(`
Rewrite the live connection of a thin report so it connects through a
perspective of its semantic model. Without --perspective the report is
reconnected to the full model.`),
		Example: strings.TrimSpace(`
  sll report set-perspective "Sales Report" -w Sales --perspective Finance
  sll report set-perspective "Sales Report" -w Sales
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, _, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}
			reportID, err := resolveItemID(ctx, n, wsID, api.ItemTypeReport, args[0])
			if err != nil {
				return err
			}

			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation:   "set perspective on",
				Resource:    "report " + reportID,
				Description: "Fetches definition.pbir, rewrites its connection string and updates the definition.",
				Details:     map[string]any{"workspace": wsID, "perspective": perspective},
			}); ok {
				return err
			}

			status, err := n.Reports().SetPerspective(ctx, wsID, reportID, perspective)
			if err != nil {
				return err
			}
			f := formatter(cmd)
			if handled, err := f.Output(map[string]any{"id": reportID, "perspective": perspective, "status_code": int(status)}); handled {
				return err
			}
			if perspective == "" {
				f.Status("Report %s now connects to the full model", args[0])
			} else {
				f.Status("Report %s now connects through perspective %s", args[0], perspective)
			}
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVarP(&perspective, "perspective", "p", "", "Perspective name; empty for the full model")
	return cmd
}

var fixFindingColumns = []frame.Column{
	{Header: "PATH", Path: "path"},
	{Header: "FIXED", Path: "fixed", Format: frame.FormatBool},
	{Header: "DETAIL", Path: "detail"},
}

type reportFixSpec struct {
	use   string
	short string
	long  string
	noun  string
	fixer func() api.ReportFixer
	flags func(cmd *cobra.Command)
}

func newReportFixCmd(spec reportFixSpec) *cobra.Command {
	var workspace string
	var opts api.FixOptions

	long := spec.short + "."
	if spec.long != "" {
		long = strings.TrimSpace(spec.long)
	}
	long += "\n\nWith --scan-only the report is inspected and left unchanged."

	cmd := &cobra.Command{
		Use:   spec.use + " <report>",
		Short: spec.short,
		Long:  long,
		Example: fmt.Sprintf(`  sll report %[1]s "Sales Report" -w Sales --scan-only
  sll report %[1]s "Sales Report" -w Sales --page Overview`, spec.use),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			n, _, err := getNormalizer()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			wsID, err := resolveWorkspaceID(ctx, n, workspace)
			if err != nil {
				return err
			}
			reportID, err := resolveItemID(ctx, n, wsID, api.ItemTypeReport, args[0])
			if err != nil {
				return err
			}

			fixer := spec.fixer()
			if !opts.ScanOnly {
				if ok, err := maybeDryRun(cmd, &dryrun.Preview{
					Operation:   "run " + fixer.Name + " on",
					Resource:    "report " + reportID,
					Description: "Fetches the report definition, rewrites matching " + fixer.File + " parts and updates the definition.",
					Details:     map[string]any{"workspace": wsID, "page": opts.Page},
				}); ok {
					return err
				}
			}

			report, err := n.Reports().Fix(ctx, wsID, reportID, fixer, opts)
			if err != nil {
				return err
			}
			f := formatter(cmd)
			if handled, err := f.Output(report); handled {
				return err
			}
			fr, err := frame.Build(report.Findings, fixFindingColumns)
			if err != nil {
				return err
			}
			if err := f.Frame(fr, ""); err != nil {
				return err
			}
			f.Status("%s", fixSummary(report, spec.noun))
			return nil
		}),
	}

	addWorkspaceFlag(cmd, &workspace)
	cmd.Flags().StringVar(&opts.Page, "page", "", "Limit to one page, by display name or page ID")
	cmd.Flags().BoolVar(&opts.ScanOnly, "scan-only", false, "Report what would change without updating the report")
	flagAlias(cmd.Flags(), "scan-only", "scan")
	if spec.flags != nil {
		spec.flags(cmd)
	}
	return cmd
}

func newReportFixPieChartsCmd() *cobra.Command {
	var target string
	return newReportFixCmd(reportFixSpec{
		use:   "fix-pie-charts",
		short: "Replace pie charts with another visual type",
		fixer: func() api.ReportFixer { return api.PieChartFixer(target) },
		noun:  "pie chart",
		flags: func(cmd *cobra.Command) {
			cmd.Flags().StringVar(&target, "target", api.DefaultPieChartReplacement, "Visual type that replaces pie charts")
		},
	})
}

func fixSummary(r *api.FixReport, noun string) string {
	switch {
	case r.Checked == 0:
		return fmt.Sprintf("No %ss found", noun)
	case r.ScanOnly && r.NeedsFix == 0:
		return fmt.Sprintf("Scanned %d %s(s); nothing to fix", r.Checked, noun)
	case r.ScanOnly:
		return fmt.Sprintf("Scanned %d %s(s); %d would be fixed", r.Checked, noun, r.NeedsFix)
	case r.Fixed == 0:
		return fmt.Sprintf("Checked %d %s(s); nothing to fix", r.Checked, noun)
	default:
		return fmt.Sprintf("Fixed %d of %d %s(s)", r.Fixed, r.Checked, noun)
	}
}
