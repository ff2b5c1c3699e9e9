package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProviderConfigRepository handles OAuth provider credentials stored in the database
type ProviderConfigRepository struct {
	db *DB
}

// NewProviderConfigRepository creates a new provider config repository
func NewProviderConfigRepository(db *DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

func scanProviderConfig(row rowScanner) (*models.ProviderConfig, error) {
	c := &models.ProviderConfig{}
	var scopes pq.StringArray
	err := row.Scan(
		&c.ID,
		&c.Provider,
		&c.ClientID,
		&c.ClientSecret,
		&scopes,
		&c.Enabled,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Scopes = []string(scopes)
	return c, nil
}

// GetByProvider retrieves the credentials for one provider
func (r *ProviderConfigRepository) GetByProvider(ctx context.Context, provider models.Provider) (*models.ProviderConfig, error) {
	c, err := scanProviderConfig(r.db.QueryRowContext(ctx, `
		SELECT id, provider, client_id, client_secret, scopes, enabled, created_at, updated_at
		FROM oauth_providers
		WHERE provider = $1
	`, provider))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider config %s: %w", provider, apperrors.NotFound("provider config not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider config: %w", err)
	}
	return c, nil
}

// GetAll retrieves all provider configurations ordered by provider
func (r *ProviderConfigRepository) GetAll(ctx context.Context) ([]*models.ProviderConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider, client_id, client_secret, scopes, enabled, created_at, updated_at
		FROM oauth_providers
		ORDER BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var configs []*models.ProviderConfig
	for rows.Next() {
		c, err := scanProviderConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider configs: %w", err)
	}

	return configs, nil
}

// Upsert creates or replaces the credentials for c.Provider
func (r *ProviderConfigRepository) Upsert(ctx context.Context, c *models.ProviderConfig) error {
	if !c.Provider.Valid() {
		return apperrors.Validation(fmt.Sprintf("unsupported provider: %s", c.Provider))
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return apperrors.Validation("client_id and client_secret are required")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Scopes == nil {
		c.Scopes = []string{}
	}

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO oauth_providers (id, provider, client_id, client_secret, scopes, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			scopes = EXCLUDED.scopes,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, c.ID, c.Provider, c.ClientID, c.ClientSecret, pq.Array(c.Scopes), c.Enabled, now, now).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert provider config: %w", conflictOr(err))
	}

	return nil
}

// Delete removes the credentials for provider
func (r *ProviderConfigRepository) Delete(ctx context.Context, provider models.Provider) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_providers WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete provider config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("provider config not found")
	}

	return nil
}
