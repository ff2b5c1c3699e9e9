package commands

import (
	"context"
	"fmt"

	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/mongostore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// roleStore is the slice of the credential store needed to change roles
type roleStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error)
}

// NewUserCmd creates the user command for granting and revoking admin
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user roles",
		Long:  "Promote a user to admin or demote an admin back to user. Takes effect on the user's next login.",
	}
	cmd.AddCommand(newUserRoleCmd("promote", "Grant the admin role", models.RoleAdmin))
	cmd.AddCommand(newUserRoleCmd("demote", "Revoke the admin role", models.RoleUser))
	return cmd
}

func newUserRoleCmd(use, short string, role models.Role) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			return withDB(func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				store, closeStore, err := openRoleStore(ctx, cfg, db)
				if err != nil {
					return err
				}
				defer closeStore()

				user, changed, err := setRole(ctx, store, email, role)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already has role %s.\n", user.Email, role)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now has role %s.\n", user.Email, role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email of the user (required)")
	return cmd
}

// setRole reports changed=false when the user already has role
func setRole(ctx context.Context, store roleStore, email string, role models.Role) (*models.User, bool, error) {
	user, err := store.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user %s: %w", email, err)
	}
	if user.Role == role {
		return user, false, nil
	}

	updated, err := store.UpdateFields(ctx, user.ID, models.UserUpdate{Role: &role})
	if err != nil {
		return nil, false, fmt.Errorf("failed to update role: %w", err)
	}
	return updated, true, nil
}

func openRoleStore(ctx context.Context, cfg *config.Config, db *database.DB) (roleStore, func(), error) {
	if cfg.CredentialStore != config.StoreMongo {
		return database.NewUserRepository(db), func() {}, nil
	}
	if cfg.MongoURL == "" {
		return nil, nil, fmt.Errorf("MONGO_URL is required when CREDENTIAL_STORE=mongo")
	}
	client, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return client.Users(), func() { _ = client.Close(context.Background()) }, nil
}
