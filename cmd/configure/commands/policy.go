package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd manages the stored CORS policy. The API re-reads it every minute.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage allowed browser origins",
		Long:  "Show, replace or reset the CORS policy stored in the database. Without a stored policy the API allows FRONTEND_URL only.",
	}

	show := &cobra.Command{
		Use:     "list",
		Aliases: []string{"show"},
		Short:   "Show the stored CORS policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				p, err := database.NewCorsPolicyRepository(db).Get(ctx)
				if err != nil {
					return err
				}
				printCorsPolicy(cmd.OutOrStdout(), p, cfg.FrontendURL)
				return nil
			})
		},
	}

	var (
		origins    string
		allowCreds bool
		maxAge     int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the CORS policy",
		Long:  "Store a comma-separated list of origins (scheme://host[:port] or *).",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate before connecting so typos fail fast
			normalized, err := database.ValidateOrigins(origins)
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, _ *config.Config, db *database.DB) error {
				p := &models.CorsPolicy{
					AllowedOrigins:   strings.Join(normalized, ","),
					AllowCredentials: allowCreds,
					MaxAge:           maxAge,
				}
				if err := database.NewCorsPolicyRepository(db).Set(ctx, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "CORS policy updated: %s\n", strings.Join(p.Origins(), ", "))
				return nil
			})
		},
	}
	set.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	set.Flags().BoolVar(&allowCreds, "allow-credentials", models.DefaultCorsAllowCredentials, "Allow credentials")
	set.Flags().IntVar(&maxAge, "max-age", models.DefaultCorsMaxAge, "Access-Control-Max-Age in seconds")
	_ = set.MarkFlagRequired("origins")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored CORS policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				existed, err := database.NewCorsPolicyRepository(db).Reset(ctx)
				if err != nil {
					return err
				}
				printReset(cmd.OutOrStdout(), "CORS policy", existed, cfg.FrontendURL)
				return nil
			})
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

// NewRatelimitCmd manages the per-client rate on auth, booking and contact routes
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage the per-client request rate",
		Long:  "Show, replace or reset the rate applied to auth, booking and contact routes, in limiter notation (5-S, 100-M, 1000-H).",
	}

	show := &cobra.Command{
		Use:     "list",
		Aliases: []string{"show"},
		Short:   "Show the stored rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, db *database.DB) error {
				p, err := database.NewRatePolicyRepository(db).Get(ctx)
				if err != nil {
					return err
				}
				printRatePolicy(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}

	var rate string
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := database.ValidateRate(rate)
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, _ *config.Config, db *database.DB) error {
				if err := database.NewRatePolicyRepository(db).Set(ctx, &models.RatePolicy{Rate: normalized}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit set to %s.\n", normalized)
				return nil
			})
		},
	}
	set.Flags().StringVar(&rate, "rate", "", "Rate such as 5-S, 100-M or 1000-H (required)")
	_ = set.MarkFlagRequired("rate")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, db *database.DB) error {
				existed, err := database.NewRatePolicyRepository(db).Reset(ctx)
				if err != nil {
					return err
				}
				printReset(cmd.OutOrStdout(), "Rate limit", existed, "the built-in default")
				return nil
			})
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func printCorsPolicy(w io.Writer, p *models.CorsPolicy, fallback string) {
	if p == nil {
		fmt.Fprintf(w, "No CORS policy stored; the API allows %s only.\n", fallback)
		return
	}
	fmt.Fprintln(w, "CORS policy:")
	fmt.Fprintf(w, "  Allowed origins:   %s\n", strings.Join(p.Origins(), ", "))
	fmt.Fprintf(w, "  Allow credentials: %t\n", p.AllowCredentials)
	fmt.Fprintf(w, "  Max-Age:           %ds\n", p.MaxAge)
	fmt.Fprintf(w, "  Updated:           %s\n", p.UpdatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
}

func printRatePolicy(w io.Writer, p *models.RatePolicy) {
	if p == nil {
		fmt.Fprintln(w, "No rate stored; the API seeds its default on next reload.")
		return
	}
	fmt.Fprintf(w, "Rate limit: %s (updated %s)\n", p.Rate, p.UpdatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
}

func printReset(w io.Writer, what string, existed bool, fallback string) {
	if !existed {
		fmt.Fprintf(w, "%s was not set; nothing to reset.\n", what)
		return
	}
	fmt.Fprintf(w, "%s removed; the API falls back to %s.\n", what, fallback)
}
