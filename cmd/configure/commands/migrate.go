package commands

import (
	"context"
	"fmt"

	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCmd applies the embedded schema. The API also runs this on startup.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, db *database.DB) error {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	}
}
