package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderConfig holds OAuth client credentials for one identity provider
type ProviderConfig struct {
	ID           uuid.UUID `json:"id"`
	Provider     Provider  `json:"provider"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"-"`
	Scopes       []string  `json:"scopes,omitempty"` // Empty means the provider's defaults
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
