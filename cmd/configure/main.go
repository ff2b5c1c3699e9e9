package main

import (
	"fmt"
	"os"

	"github.com/benvon/drivenova/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "drivenova-configure",
		Short:        "Configuration tool for the DriveNova API",
		Long:         "CLI tool for OAuth providers, CORS, rate limits, admin roles and migrations. Reads DATABASE_URL from the environment.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.NewProviderCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewUserCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
