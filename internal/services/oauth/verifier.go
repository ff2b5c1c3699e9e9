package oauth

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// IDClaims are the identity claims read from a verified ID token
type IDClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier verifies provider-issued ID tokens against the provider's JWKS
type Verifier struct {
	jwks     *JWKSManager
	jwksURL  string
	issuers  []string
	audience string
	now      func() time.Time
}

// NewVerifier creates a verifier accepting tokens from any of issuers addressed to audience
func NewVerifier(jwks *JWKSManager, jwksURL string, issuers []string, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		jwksURL:  jwksURL,
		issuers:  issuers,
		audience: audience,
		now:      time.Now,
	}
}

// Verify checks the signature, expiry, audience and issuer of raw and extracts its claims
func (v *Verifier) Verify(ctx context.Context, raw string) (*IDClaims, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAudience(v.audience),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}

	token, err := jwt.Parse([]byte(raw), append(opts, jwt.WithKeySet(keys))...)
	if err != nil && keysMayBeStale(raw, keys, err) {
		fresh, refreshErr := v.jwks.Refresh(ctx, v.jwksURL)
		if refreshErr != nil {
			return nil, fmt.Errorf("failed to parse/verify token: %w", err)
		}
		token, err = jwt.Parse([]byte(raw), append(opts, jwt.WithKeySet(fresh))...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if !slices.Contains(v.issuers, token.Issuer()) {
		return nil, fmt.Errorf("token issuer mismatch: got %q", token.Issuer())
	}

	claims := &IDClaims{Subject: token.Subject()}
	if email, ok := token.Get("email"); ok {
		claims.Email, _ = email.(string)
	}
	if verified, ok := token.Get("email_verified"); ok {
		switch val := verified.(type) {
		case bool:
			claims.EmailVerified = val
		case string:
			claims.EmailVerified = val == "true"
		}
	}
	if name, ok := token.Get("name"); ok {
		claims.Name, _ = name.(string)
	}
	if picture, ok := token.Get("picture"); ok {
		claims.Picture, _ = picture.(string)
	}

	return claims, nil
}

// keysMayBeStale reports whether a failed parse could succeed against a
// refetched key set: the token names a key id the cached set lacks, or its
// signature did not verify. Malformed tokens and claim failures never qualify.
func keysMayBeStale(raw string, keys jwk.Set, parseErr error) bool {
	if jwt.IsValidationError(parseErr) {
		return false
	}
	msg, err := jws.Parse([]byte(raw))
	if err != nil || len(msg.Signatures()) == 0 {
		return false
	}
	if kid := msg.Signatures()[0].ProtectedHeaders().KeyID(); kid != "" {
		if _, ok := keys.LookupKeyID(kid); !ok {
			return true
		}
	}
	return jws.IsVerificationError(parseErr)
}
