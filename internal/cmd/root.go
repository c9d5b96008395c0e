package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/config"
	"github.com/KornAlexander/semantic-link-labs/internal/debug"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
	"github.com/KornAlexander/semantic-link-labs/internal/outfmt"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output                  string
	JSON                    bool
	Debug                   bool
	DryRun                  bool
	Quiet                   bool
	Yes                     bool
	Query                   string
	Template                string
	Compact                 bool
	Profile                 string
	Token                   string
	Timeout                 time.Duration
	PollInterval            time.Duration
	MaxPolls                int
	MaxRateLimitRetries     int
	Max5xxRetries           int
	RateLimitDelay          time.Duration
	ServerErrorDelay        time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerResetTime time.Duration

	MaxRateLimitRetriesSet     bool
	Max5xxRetriesSet           bool
	RateLimitDelaySet          bool
	ServerErrorDelaySet        bool
	CircuitBreakerThresholdSet bool
	CircuitBreakerResetTimeSet bool
}

// flags holds the global command flags. This is package-level mutable state
// that MUST be reset at the start of every Execute() call; tests rely on it.
var flags = defaultFlags()

func defaultFlags() rootFlags {
	return rootFlags{
		Output:       defaultOutput(),
		Timeout:      api.DefaultTimeout,
		PollInterval: api.DefaultPollInterval,
		MaxPolls:     api.DefaultMaxPolls,
	}
}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv("SLL_OUTPUT")); value != "" {
		return value
	}
	return "text"
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// The env file is loaded first so SLL_OUTPUT and friends feed the
	// flag defaults below.
	if err := config.LoadEnvFile(); err != nil {
		_, _ = fmt.Fprintln(iocontext.GetIO(ctx).ErrOut, err)
		return err
	}
	flags = defaultFlags()

	root := &cobra.Command{
		Use:                "sll",
		Short:              "Work with Microsoft Fabric, Power BI and Azure REST APIs",
		Long:               "sll lists and manages Fabric workspaces and items, item definitions, report perspectives,\nmirrored databases and managed private endpoints, and issues raw API calls with\npagination and long-running operations handled for you.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupContext(cmd)
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)
	streams := iocontext.GetIO(ctx)
	root.SetOut(streams.Out)
	root.SetErr(streams.ErrOut)
	root.SetIn(streams.In)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl (env SLL_OUTPUT)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	pf.StringVarP(&flags.Query, "query", "q", "", "jq expression to filter JSON output")
	pf.StringVar(&flags.Template, "template", "", "Go template string (or @path) to render output")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Preview changes without executing")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	pf.BoolVarP(&flags.Yes, "yes", "y", false, "Skip confirmation prompts")
	pf.StringVar(&flags.Profile, "profile", "", "Stored profile to use (env SLL_PROFILE)")
	pf.StringVar(&flags.Token, "token", "", "Bearer token, overriding the stored profile (env SLL_TOKEN)")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.DurationVar(&flags.PollInterval, "poll-interval", flags.PollInterval, "Wait between long-running operation status checks")
	pf.IntVar(&flags.MaxPolls, "max-polls", flags.MaxPolls, "Status checks before giving up on a long-running operation")
	pf.IntVar(&flags.MaxRateLimitRetries, "max-rate-limit-retries", 0, "Max retries for 429 responses on GET requests (overrides env)")
	pf.IntVar(&flags.Max5xxRetries, "max-5xx-retries", 0, "Max retries for 5xx responses on GET requests (overrides env)")
	pf.DurationVar(&flags.RateLimitDelay, "rate-limit-delay", 0, "Base delay for 429 retries without Retry-After (overrides env)")
	pf.DurationVar(&flags.ServerErrorDelay, "server-error-delay", 0, "Delay between 5xx retries (overrides env)")
	pf.IntVar(&flags.CircuitBreakerThreshold, "circuit-breaker-threshold", 0, "Consecutive 5xx responses before the circuit opens (overrides env)")
	pf.DurationVar(&flags.CircuitBreakerResetTime, "circuit-breaker-reset-time", 0, "Circuit breaker reset time (overrides env)")

	flagAlias(pf, "compact-json", "cj")
	flagAlias(pf, "compact-json", "compact")
	flagAlias(pf, "dry-run", "dr")
	flagAlias(pf, "query", "jq")
	flagAlias(pf, "template", "tpl")
	flagAlias(pf, "max-rate-limit-retries", "max-rl")
	flagAlias(pf, "max-5xx-retries", "m5x")

	root.AddCommand(newWorkspacesCmd())
	root.AddCommand(newItemsCmd())
	root.AddCommand(newDefinitionCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newMirroringCmd())
	root.AddCommand(newEndpointsCmd())
	root.AddCommand(newAPICmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

// setupContext turns the global flags into context values for the command.
func setupContext(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if flags.JSON {
		if flagOrAliasChanged(cmd, "output") && !strings.EqualFold(flags.Output, "json") {
			return fmt.Errorf("--json conflicts with --output %s", flags.Output)
		}
		flags.Output = "json"
	}
	mode, err := outfmt.Parse(flags.Output)
	if err != nil {
		return err
	}
	if flags.Query != "" && mode == outfmt.Text {
		if flagOrAliasChanged(cmd, "output") {
			return fmt.Errorf("--query requires --output json or jsonl")
		}
		mode = outfmt.JSON
	}
	ctx = outfmt.WithMode(ctx, mode)
	ctx = outfmt.WithCompact(ctx, flags.Compact)
	if flags.Query != "" {
		ctx = outfmt.WithQuery(ctx, flags.Query)
	}
	if flags.Template != "" {
		tmpl, err := iocontext.ReadValue(ctx, flags.Template)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		ctx = outfmt.WithTemplate(ctx, string(tmpl))
	}

	base := iocontext.GetIO(ctx)
	streams := &iocontext.IO{Out: base.Out, ErrOut: base.ErrOut, In: base.In}
	if flags.Quiet {
		streams.ErrOut = io.Discard
	}
	ctx = iocontext.WithIO(ctx, streams)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.ErrOut)

	debug.SetupLogger(streams.ErrOut, flags.Debug)
	ctx = debug.WithDebug(ctx, flags.Debug)
	ctx = dryrun.WithDryRun(ctx, flags.DryRun)

	if err := readRetryFlags(cmd); err != nil {
		return err
	}
	if flags.PollInterval < 0 {
		return fmt.Errorf("--poll-interval must be >= 0")
	}
	if flags.MaxPolls < 1 {
		return fmt.Errorf("--max-polls must be >= 1")
	}

	cmd.SetContext(ctx)
	return nil
}

func readRetryFlags(cmd *cobra.Command) error {
	flags.MaxRateLimitRetriesSet = flagOrAliasChanged(cmd, "max-rate-limit-retries")
	flags.Max5xxRetriesSet = flagOrAliasChanged(cmd, "max-5xx-retries")
	flags.RateLimitDelaySet = flagOrAliasChanged(cmd, "rate-limit-delay")
	flags.ServerErrorDelaySet = flagOrAliasChanged(cmd, "server-error-delay")
	flags.CircuitBreakerThresholdSet = flagOrAliasChanged(cmd, "circuit-breaker-threshold")
	flags.CircuitBreakerResetTimeSet = flagOrAliasChanged(cmd, "circuit-breaker-reset-time")

	checks := []struct {
		set      bool
		negative bool
		name     string
	}{
		{flags.MaxRateLimitRetriesSet, flags.MaxRateLimitRetries < 0, "max-rate-limit-retries"},
		{flags.Max5xxRetriesSet, flags.Max5xxRetries < 0, "max-5xx-retries"},
		{flags.RateLimitDelaySet, flags.RateLimitDelay < 0, "rate-limit-delay"},
		{flags.ServerErrorDelaySet, flags.ServerErrorDelay < 0, "server-error-delay"},
		{flags.CircuitBreakerThresholdSet, flags.CircuitBreakerThreshold < 0, "circuit-breaker-threshold"},
		{flags.CircuitBreakerResetTimeSet, flags.CircuitBreakerResetTime < 0, "circuit-breaker-reset-time"},
	}
	for _, c := range checks {
		if c.set && c.negative {
			return fmt.Errorf("--%s must be >= 0", c.name)
		}
	}
	return nil
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
// targetCmd is the command Cobra resolved before the error (may be root itself).
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			parent := root
			if targetCmd != nil {
				parent = targetCmd
			}
			var names []string
			for _, c := range parent.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		if unknown := extractFlag(msg); unknown != "" {
			seen := make(map[string]bool)
			var flagNames []string
			addFlags := func(fs *pflag.FlagSet) {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Hidden {
						return
					}
					name := "--" + f.Name
					if !seen[name] {
						seen[name] = true
						flagNames = append(flagNames, name)
					}
				})
			}
			helpCmd := "sll --help"
			if targetCmd != nil {
				addFlags(targetCmd.Flags())
				addFlags(targetCmd.InheritedFlags())
				helpCmd = targetCmd.CommandPath() + " --help"
			} else {
				addFlags(root.PersistentFlags())
			}
			if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
			}
			return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
		}
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		return ""
	}
	rest := s[idx:]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimRight(rest, ".,;:!?\"'")
}
