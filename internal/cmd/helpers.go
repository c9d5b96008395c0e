package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/dryrun"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
	"github.com/KornAlexander/semantic-link-labs/internal/outfmt"
	"github.com/KornAlexander/semantic-link-labs/internal/resolve"
)

// errAlreadyHandled is a sentinel error indicating the error was already printed to stderr.
// Commands using RunE return this to signal Cobra that an error occurred (for exit code)
// without Cobra printing it again (since SilenceErrors is true on root command).
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return errAlreadyHandled
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			if isJSON(cmd) {
				if structured := api.StructuredErrorFromError(err); structured != nil {
					_ = printJSONErr(cmd, structured)
				}
			} else {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
			}
			// Return a handled error so tests can still inspect the original message.
			return &handledError{err: err, exitCode: ExitCode(err)}
		}
		return nil
	}
}

// printJSONErr writes a JSON value to stderr.
func printJSONErr(cmd *cobra.Command, v any) error {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.WriteJSON(ioStreams.ErrOut, v, outfmt.IsCompact(cmd.Context()))
}

// cmdContext returns the command context
func cmdContext(cmd *cobra.Command) context.Context {
	return cmd.Context()
}

// isJSON checks if the command context wants JSON output
func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmd.Context())
}

func formatter(cmd *cobra.Command) *outfmt.Formatter {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), ioStreams.Out, ioStreams.ErrOut)
}

func maybeDryRun(cmd *cobra.Command, preview *dryrun.Preview) (bool, error) {
	if !dryrun.IsEnabled(cmd.Context()) {
		return false, nil
	}
	if preview == nil {
		preview = &dryrun.Preview{}
	}
	preview.DryRun = true
	if isJSON(cmd) {
		ioStreams := iocontext.GetIO(cmd.Context())
		return true, outfmt.WriteJSON(ioStreams.Out, preview, outfmt.IsCompact(cmd.Context()))
	}

	ioStreams := iocontext.GetIO(cmd.Context())
	preview.Write(ioStreams.Out)
	return true, nil
}

// previewURL resolves route for a dry-run preview. Resolution failures
// leave the route as given.
func previewURL(client *api.Client, audience api.Audience, route string) string {
	if client == nil {
		return route
	}
	if u, err := client.ResolveURL(audience, route, nil); err == nil {
		return u
	}
	return route
}

type confirmOptions struct {
	Prompt        string
	CancelMessage string
}

// confirmAction asks for a y/N answer on stdin unless --yes was given.
// JSON output never prompts, so --yes is required there.
func confirmAction(cmd *cobra.Command, opts confirmOptions) (bool, error) {
	if flags.Yes {
		return true, nil
	}
	if isJSON(cmd) {
		return false, fmt.Errorf("--yes is required when using --output json")
	}

	ioStreams := iocontext.GetIO(cmd.Context())
	if opts.Prompt != "" {
		_, _ = fmt.Fprint(ioStreams.ErrOut, opts.Prompt)
	}

	reader := bufio.NewReader(ioStreams.In)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		if opts.CancelMessage != "" {
			_, _ = fmt.Fprintln(ioStreams.ErrOut, opts.CancelMessage)
		}
		return false, nil
	}

	response = strings.TrimSpace(strings.ToLower(response))
	if response != "y" && response != "yes" {
		if opts.CancelMessage != "" {
			_, _ = fmt.Fprintln(ioStreams.ErrOut, opts.CancelMessage)
		}
		return false, nil
	}
	return true, nil
}

// parseItemTypeFlag parses --type, adding a "did you mean" hint to the
// validation error when a known type is close.
func parseItemTypeFlag(value string) (api.ItemType, error) {
	t, err := api.ParseItemType(value)
	if err == nil {
		return t, nil
	}
	var se *api.StructuredError
	if errors.As(err, &se) {
		if suggestion := suggestItemType(value, api.ItemTypeNames()); suggestion != "" {
			se.Suggestion = fmt.Sprintf("Did you mean %q?", suggestion)
		}
	}
	return api.ItemType{}, err
}

// resolveWorkspaceID turns a workspace name or ID into an ID. Names are
// matched against the caller's workspace listing.
func resolveWorkspaceID(ctx context.Context, n *api.Normalizer, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("--workspace is required")
	}
	if resolve.IsUUID(query) {
		return resolve.Resolve("workspace", query, nil)
	}
	workspaces, err := n.Workspaces().List(ctx)
	if err != nil {
		return "", err
	}
	named := make([]resolve.Named, 0, len(workspaces))
	for _, ws := range workspaces {
		named = append(named, resolve.Named{ID: ws.ID, Name: ws.DisplayName})
	}
	return resolve.Resolve("workspace", query, named)
}

// resolveItemID turns an item name or ID into an ID within a workspace.
// A zero t searches items of every type.
func resolveItemID(ctx context.Context, n *api.Normalizer, workspaceID string, t api.ItemType, query string) (string, error) {
	query = strings.TrimSpace(query)
	kind := "item"
	if t.Name != "" {
		kind = t.Name
	}
	if query == "" {
		return "", fmt.Errorf("%s name or ID is required", kind)
	}
	if resolve.IsUUID(query) {
		return resolve.Resolve(kind, query, nil)
	}

	var (
		items []api.Item
		err   error
	)
	if t.Name != "" {
		items, err = n.Items().List(ctx, workspaceID, t)
	} else {
		items, err = n.Items().ListAll(ctx, workspaceID, "")
	}
	if err != nil {
		return "", err
	}
	named := make([]resolve.Named, 0, len(items))
	for _, it := range items {
		named = append(named, resolve.Named{ID: it.ID, Name: it.DisplayName})
	}
	return resolve.Resolve(kind, query, named)
}

// aliasBridgeValue wraps a pflag.Value so that Set() on the alias also
// marks the canonical flag as Changed.  This lets aliases satisfy Cobra's
// MarkFlagRequired check transparently.
type aliasBridgeValue struct {
	pflag.Value
	canonical *pflag.Flag
}

func (v *aliasBridgeValue) Set(s string) error {
	if err := v.Value.Set(s); err != nil {
		return err
	}
	v.canonical.Changed = true
	return nil
}

// aliasBridgeSliceValue extends aliasBridgeValue to also forward the
// pflag.SliceValue interface when the underlying Value supports it.
type aliasBridgeSliceValue struct {
	aliasBridgeValue
	slice pflag.SliceValue
}

func (v *aliasBridgeSliceValue) Append(s string) error     { return v.slice.Append(s) }
func (v *aliasBridgeSliceValue) Replace(ss []string) error { return v.slice.Replace(ss) }
func (v *aliasBridgeSliceValue) GetSlice() []string        { return v.slice.GetSlice() }

// flagAlias registers a hidden alias for an existing flag.
// Both flags share the same underlying Value, so setting either one sets both.
// The alias is annotated so flagOrAliasChanged() can detect it.
func flagAlias(fs *pflag.FlagSet, name, alias string) {
	f := fs.Lookup(name)
	if f == nil {
		panic(fmt.Sprintf("flagAlias: flag %q not found", name))
	}
	a := *f
	a.Name = alias
	a.Shorthand = ""
	a.Usage = ""
	a.Hidden = true
	bridge := &aliasBridgeValue{Value: f.Value, canonical: f}
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		a.Value = &aliasBridgeSliceValue{aliasBridgeValue: *bridge, slice: sv}
	} else {
		a.Value = bridge
	}
	// The alias is never independently required; the canonical flag enforces that.
	newAnn := map[string][]string{"alias-of": {name}}
	for k, v := range f.Annotations {
		if k == cobra.BashCompOneRequiredFlag {
			continue
		}
		newAnn[k] = v
	}
	a.Annotations = newAnn
	fs.AddFlag(&a)
}

// flagOrAliasChanged returns true if the named flag or any of its
// hidden aliases was explicitly set by the user.
func flagOrAliasChanged(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	if cmd.InheritedFlags().Changed(name) {
		return true
	}

	aliasChanged := func(fs *pflag.FlagSet) bool {
		found := false
		fs.VisitAll(func(f *pflag.Flag) {
			if found || !f.Changed {
				return
			}
			if targets, ok := f.Annotations["alias-of"]; ok {
				for _, target := range targets {
					if target == name {
						found = true
						return
					}
				}
			}
		})
		return found
	}
	return aliasChanged(cmd.Flags()) || aliasChanged(cmd.InheritedFlags())
}
