package models

import (
	"time"

	"github.com/google/uuid"
)

// Role controls access to admin-gated operations
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Provider identifies an external identity provider
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// SupportedProviders lists every provider a user record can carry a key for
var SupportedProviders = []Provider{ProviderGoogle, ProviderGitHub}

// Valid reports whether p is a supported provider
func (p Provider) Valid() bool {
	for _, sp := range SupportedProviders {
		if p == sp {
			return true
		}
	}
	return false
}

// ProviderKey is a (provider, provider user id) pair
type ProviderKey struct {
	Provider Provider `json:"provider"`
	ID       string   `json:"id"`
}

// User represents a user in the system
type User struct {
	ID            uuid.UUID `json:"id"`
	GoogleID      *string   `json:"google_id,omitempty"`
	GitHubID      *string   `json:"github_id,omitempty"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  *string   `json:"-"`
	Role          Role      `json:"role"`
	ProfileImage  string    `json:"profile_image"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProviderID returns the user's id at provider p, or nil.
func (u *User) ProviderID(p Provider) *string {
	switch p {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderGitHub:
		return u.GitHubID
	default:
		return nil
	}
}

// SetProviderID links the user to id at provider p.
func (u *User) SetProviderID(p Provider, id string) {
	switch p {
	case ProviderGoogle:
		u.GoogleID = &id
	case ProviderGitHub:
		u.GitHubID = &id
	}
}

// HasPassword reports whether local password login is possible
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// LinkedProviders returns the providers the user has a key for
func (u *User) LinkedProviders() []Provider {
	var out []Provider
	for _, p := range SupportedProviders {
		if id := u.ProviderID(p); id != nil && *id != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasCredential reports whether the user can authenticate at all:
// a password hash or at least one provider key.
func (u *User) HasCredential() bool {
	return u.HasPassword() || len(u.LinkedProviders()) > 0
}

// UserUpdate holds the fields updateFields may change. Nil means unchanged.
type UserUpdate struct {
	Link          *ProviderKey
	Username      *string
	ProfileImage  *string
	Role          *Role
	EmailVerified *bool
}

// Empty reports whether the update changes nothing
func (u UserUpdate) Empty() bool {
	return u.Link == nil && u.Username == nil && u.ProfileImage == nil && u.Role == nil && u.EmailVerified == nil
}
