package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Google signs users in with Google and reads identity from the verified ID token
type Google struct {
	config   *oauth2.Config
	verifier *Verifier
}

// NewGoogle creates the Google provider
func NewGoogle(creds Credentials, jwks *JWKSManager) *Google {
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	return &Google{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoints.Google,
		},
		verifier: NewVerifier(jwks, googleJWKSURL, googleIssuers, creds.ClientID),
	}
}

// Name returns the provider identifier
func (g *Google) Name() models.Provider {
	return models.ProviderGoogle
}

// AuthCodeURL builds the consent URL with PKCE parameters
func (g *Google) AuthCodeURL(state, verifier string) string {
	return g.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades code for tokens and verifies the returned ID token.
// An unverified email is dropped so it cannot be used to link accounts.
func (g *Google) Exchange(ctx context.Context, code, verifier string) (*identity.ProviderCallback, error) {
	token, err := g.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &FlowError{Code: CodeExchangeFailed, Err: fmt.Errorf("google token exchange failed: %w", err)}
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, &FlowError{Code: CodeExchangeFailed, Err: errors.New("google did not return id_token")}
	}

	claims, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &FlowError{Code: CodeExchangeFailed, Err: fmt.Errorf("google id_token verification failed: %w", err)}
	}

	email := claims.Email
	if !claims.EmailVerified {
		email = ""
	}

	return &identity.ProviderCallback{
		Provider:    models.ProviderGoogle,
		ProviderID:  claims.Subject,
		Email:       email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}, nil
}
