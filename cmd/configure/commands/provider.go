package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/oauth"
	"github.com/spf13/cobra"
)

// NewProviderCmd creates the OAuth provider command. Stored credentials are
// read once at API startup; environment credentials take precedence.
func NewProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage OAuth providers",
		Long:  "List, store, delete or test Google and GitHub OAuth client credentials. Changes apply on the next API restart.",
	}
	cmd.AddCommand(newProviderListCmd())
	cmd.AddCommand(newProviderSetCmd())
	cmd.AddCommand(newProviderDeleteCmd())
	cmd.AddCommand(newProviderTestCmd())
	return cmd
}

func parseProvider(arg string) (models.Provider, error) {
	p := models.Provider(strings.ToLower(strings.TrimSpace(arg)))
	if !p.Valid() {
		return "", apperrors.Validation(fmt.Sprintf("unsupported provider %q (supported: google, github)", arg))
	}
	return p, nil
}

// envClientID reports the client id the API would take from the environment
func envClientID(cfg *config.Config, p models.Provider) string {
	switch p {
	case models.ProviderGoogle:
		return cfg.GoogleClientID
	case models.ProviderGitHub:
		return cfg.GitHubClientID
	}
	return ""
}

func newProviderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured OAuth providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				configs, err := database.NewProviderConfigRepository(db).GetAll(ctx)
				if err != nil {
					return fmt.Errorf("failed to list provider configs: %w", err)
				}
				printProviders(cmd.OutOrStdout(), cfg, configs)
				return nil
			})
		},
	}
}

func printProviders(w io.Writer, cfg *config.Config, configs []*models.ProviderConfig) {
	stored := make(map[models.Provider]*models.ProviderConfig, len(configs))
	for _, c := range configs {
		stored[c.Provider] = c
	}

	fmt.Fprintln(w, "OAuth providers:")
	for _, p := range models.SupportedProviders {
		fmt.Fprintf(w, "  - %s\n", p)
		switch c, ok := stored[p]; {
		case envClientID(cfg, p) != "":
			fmt.Fprintf(w, "    Source: environment (client id %s)\n", envClientID(cfg, p))
		case ok && c.Enabled:
			fmt.Fprintf(w, "    Source: database (client id %s)\n", c.ClientID)
		case ok:
			fmt.Fprintln(w, "    Source: database, disabled")
		default:
			fmt.Fprintln(w, "    Not configured")
		}
		fmt.Fprintf(w, "    Callback URL: %s\n", oauth.CallbackURL(cfg.BaseURL, p))
	}
}

func newProviderSetCmd() *cobra.Command {
	var clientID, clientSecret, scopes string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "set <google|github>",
		Short: "Store OAuth client credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("required flags: --client-id, --client-secret")
			}

			c := &models.ProviderConfig{
				Provider:     provider,
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Scopes:       splitList(scopes),
				Enabled:      !disabled,
			}
			return withDB(func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				if err := database.NewProviderConfigRepository(db).Upsert(ctx, c); err != nil {
					return fmt.Errorf("failed to store provider config: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Stored credentials for %s.\n", provider)
				fmt.Fprintf(out, "Register this callback URL with the provider: %s\n", oauth.CallbackURL(cfg.BaseURL, provider))
				if envClientID(cfg, provider) != "" {
					fmt.Fprintln(out, "Note: environment credentials are set and take precedence.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret (required)")
	cmd.Flags().StringVar(&scopes, "scopes", "", "Comma-separated scopes (default: provider defaults)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Store the credentials but keep the provider off")

	return cmd
}

func newProviderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <google|github>",
		Short: "Delete stored OAuth client credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, _ *config.Config, db *database.DB) error {
				if err := database.NewProviderConfigRepository(db).Delete(ctx, provider); err != nil {
					return fmt.Errorf("failed to delete provider config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted stored credentials for %s.\n", provider)
				return nil
			})
		},
	}
}

func newProviderTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <google|github>",
		Short: "Test OAuth provider configuration",
		Long:  "Check that credentials exist for the provider and that its public endpoints are reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Testing OAuth configuration for provider: %s\n", provider)

				if envClientID(cfg, provider) != "" {
					fmt.Fprintln(out, "✓ Credentials found in environment")
				} else {
					c, err := database.NewProviderConfigRepository(db).GetByProvider(ctx, provider)
					switch {
					case apperrors.IsNotFound(err):
						return errors.New("no credentials configured; use 'provider set' or the environment")
					case err != nil:
						return err
					case !c.Enabled:
						return errors.New("stored credentials are disabled")
					}
					fmt.Fprintln(out, "✓ Credentials found in database")
				}

				desc, err := oauth.NewProber(nil).Probe(ctx, provider)
				if err != nil {
					return fmt.Errorf("endpoint check failed: %w", err)
				}
				fmt.Fprintf(out, "✓ %s\n", desc)
				fmt.Fprintf(out, "\nCallback URL: %s\n", oauth.CallbackURL(cfg.BaseURL, provider))
				fmt.Fprintln(out, "\n✓ OAuth configuration test passed")
				return nil
			})
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
