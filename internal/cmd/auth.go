package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/config"
	"github.com/KornAlexander/semantic-link-labs/internal/frame"
	"github.com/KornAlexander/semantic-link-labs/internal/iocontext"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials and profiles",
		Long: strings.TrimSpace(`
Profiles hold a bearer token and optional base URL overrides, stored in the
OS keyring. SLL_TOKEN and --token bypass the keyring entirely.`),
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthProfilesCmd())
	cmd.AddCommand(newAuthUseCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var baseURLs = map[api.Audience]*string{}
	var verify bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a token in the keyring",
		Example: strings.TrimSpace(`
  # Store a token under the default profile
  sll auth login --token "$(az account get-access-token --resource https://api.fabric.microsoft.com --query accessToken -o tsv)"

  # Read the token from stdin into a named profile
  pbi-token | sll auth login --token @- --profile prod

  # Sovereign cloud endpoints
  sll auth login --token @token.txt --fabric-url https://api.fabric.microsoft.us
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(flags.Token) == "" {
				return fmt.Errorf("--token is required (use @path or @- to read it)")
			}
			ctx := cmdContext(cmd)
			raw, err := iocontext.ReadValue(ctx, flags.Token)
			if err != nil {
				return err
			}
			token := strings.TrimSpace(string(raw))
			if token == "" {
				return fmt.Errorf("token is empty")
			}

			profile := config.Profile{Token: token, BaseURLs: map[string]string{}}
			for aud, value := range baseURLs {
				if v := strings.TrimSuffix(strings.TrimSpace(*value), "/"); v != "" {
					profile.BaseURLs[string(aud)] = v
				}
			}

			if verify {
				f := newClientFactory()
				client, err := f.newClient(config.ClientConfig{Profile: flags.Profile, Token: token, BaseURLs: profile.BaseURLs})
				if err != nil {
					return err
				}
				if _, err := f.normalizer(client).Get(ctx, api.Request{Method: http.MethodGet, Route: "/v1/workspaces"}); err != nil {
					return fmt.Errorf("token verification failed: %w", err)
				}
			}

			name := profileName(flags.Profile)
			if err := config.SaveProfile(name, profile); err != nil {
				return err
			}

			out := formatter(cmd)
			if handled, err := out.Output(map[string]any{"profile": name, "saved": true}); handled {
				return err
			}
			out.Status("Saved credentials to profile %s", name)
			return nil
		}),
	}

	for _, aud := range api.Audiences() {
		value := new(string)
		baseURLs[aud] = value
		cmd.Flags().StringVar(value, string(aud)+"-url", "", fmt.Sprintf("Base URL override for the %s audience", aud))
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the token with a workspace listing before saving")
	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the credentials a call would use",
		Long:  "Display the resolved profile, token source and base URLs (the token is masked).",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ResolveClientConfig(flags.Profile, flags.Token)
			f := formatter(cmd)
			if errors.Is(err, config.ErrNotConfigured) {
				if handled, err := f.Output(map[string]any{
					"authenticated": false,
					"message":       "Not authenticated. Run 'sll auth login' or set SLL_TOKEN.",
				}); handled {
					return err
				}
				out := iocontext.GetIO(cmd.Context()).Out
				_, _ = fmt.Fprintln(out, "Not authenticated.")
				_, _ = fmt.Fprintln(out, "Run 'sll auth login' or set SLL_TOKEN.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load credentials: %w", err)
			}

			client, err := newClientFactory().newClient(cfg)
			if err != nil {
				return err
			}
			urls := make(map[string]string, len(client.BaseURLs))
			pairs := [][2]string{
				{"Profile", cfg.Profile},
				{"Source", cfg.Source},
				{"Token", maskToken(cfg.Token)},
			}
			for _, aud := range api.Audiences() {
				urls[string(aud)] = client.BaseURLs[aud]
				pairs = append(pairs, [2]string{audienceLabels[aud] + " URL", client.BaseURLs[aud]})
			}
			return f.KeyValues(map[string]any{
				"authenticated": true,
				"profile":       cfg.Profile,
				"source":        cfg.Source,
				"token":         maskToken(cfg.Token),
				"base_urls":     urls,
			}, pairs)
		}),
	}
}

var audienceLabels = map[api.Audience]string{
	api.AudienceFabric:  "Fabric",
	api.AudiencePowerBI: "Power BI",
	api.AudienceAzure:   "Azure",
	api.AudienceGraph:   "Graph",
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove a profile from the keyring",
		Long:  "Delete the selected profile (--profile, SLL_PROFILE, or the current profile).",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			name := strings.TrimSpace(flags.Profile)
			if name == "" {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				name = current
			}
			if err := config.DeleteProfile(name); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			f := formatter(cmd)
			if handled, err := f.Output(map[string]any{"profile": name, "removed": true}); handled {
				return err
			}
			f.Status("Profile %s removed", name)
			return nil
		}),
	}
}

type profileRow struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
}

var profileColumns = []frame.Column{
	{Header: "NAME", Path: "name"},
	{Header: "CURRENT", Path: "current", Format: frame.FormatBool},
}

func newAuthProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			names, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, err := config.CurrentProfile()
			if err != nil {
				return err
			}
			rows := make([]profileRow, 0, len(names))
			for _, name := range names {
				rows = append(rows, profileRow{Name: name, Current: name == current})
			}

			f := formatter(cmd)
			if handled, err := f.Output(rows); handled {
				return err
			}
			fr, err := frame.Build(rows, profileColumns)
			if err != nil {
				return err
			}
			return f.Frame(fr, "No profiles stored. Run 'sll auth login'.")
		}),
	}
}

func newAuthUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Make a stored profile current",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if err := config.SetCurrentProfile(args[0]); err != nil {
				return err
			}
			f := formatter(cmd)
			if handled, err := f.Output(map[string]any{"profile": args[0], "current": true}); handled {
				return err
			}
			f.Status("Now using profile %s", args[0])
			return nil
		}),
	}
}

func profileName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "default"
	}
	return name
}

// maskToken masks a token for display, showing only first and last 4 characters
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
