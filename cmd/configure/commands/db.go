package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/database"
)

// withDB loads DATABASE_URL, connects and runs fn against the pool
func withDB(fn func(ctx context.Context, cfg *config.Config, db *database.DB) error) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	return fn(context.Background(), cfg, db)
}
