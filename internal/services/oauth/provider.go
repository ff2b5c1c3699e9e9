// Package oauth drives the authorization-code flow against external identity
// providers and normalizes what they return into identity.ProviderCallback.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/identity"
)

// Error codes appended to the front-end redirect when a callback fails
const (
	CodeStateMismatch   = "oauth_state_mismatch"
	CodeDenied          = "oauth_denied"
	CodeExchangeFailed  = "oauth_exchange_failed"
	CodeEmailMissing    = "oauth_email_missing"
	CodeAccountConflict = "oauth_account_conflict"
	CodeFailed          = "oauth_failed"
)

// Provider is an external identity provider. Implementations return identity
// facts only; linking and account creation belong to the identity resolver.
type Provider interface {
	Name() models.Provider
	// AuthCodeURL returns the authorization URL carrying state and the S256 challenge for verifier
	AuthCodeURL(state, verifier string) string
	// Exchange trades an authorization code for the caller's identity
	Exchange(ctx context.Context, code, verifier string) (*identity.ProviderCallback, error)
}

// Credentials are the OAuth client settings of one provider
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// FlowError is a callback failure tagged with its redirect error code
type FlowError struct {
	Code string
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// ErrorCode picks the redirect error code for a failed callback
func ErrorCode(err error) string {
	var flowErr *FlowError
	switch {
	case errors.As(err, &flowErr):
		return flowErr.Code
	case errors.Is(err, identity.ErrEmailMissing):
		return CodeEmailMissing
	case apperrors.IsConflict(err):
		return CodeAccountConflict
	default:
		return CodeFailed
	}
}

// Registry holds the enabled providers by name
type Registry struct {
	providers map[models.Provider]Provider
}

// NewRegistry registers the given providers by name
func NewRegistry(list ...Provider) *Registry {
	m := make(map[models.Provider]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name
func (r *Registry) Get(name models.Provider) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists the enabled providers in sorted order
func (r *Registry) Names() []models.Provider {
	names := make([]models.Provider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
