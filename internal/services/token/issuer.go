// Package token issues and verifies the HS256 access tokens handed to clients.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultTTL is the lifetime of an issued access token
const DefaultTTL = 7 * 24 * time.Hour

const (
	claimID       = "id"
	claimUsername = "username"
	claimEmail    = "email"
	claimRole     = "role"
)

// Issuer signs and verifies access tokens with a shared secret
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an issuer. An empty secret is a configuration error.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, apperrors.Configuration("JWT_SECRET is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{key: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

// TTL returns the lifetime of issued tokens
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs an access token for user
func (i *Issuer) Issue(user *models.User) (string, error) {
	now := i.now().UTC()
	tok, err := jwt.NewBuilder().
		Subject(user.ID.String()).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		Claim(claimID, user.ID.String()).
		Claim(claimUsername, user.Username).
		Claim(claimEmail, user.Email).
		Claim(claimRole, string(user.Role)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// Every failure is reported as Unauthorized.
func (i *Issuer) Verify(raw string) (*models.AccessClaims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, i.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, apperrors.UnauthorizedWrap("token expired", err)
		}
		return nil, apperrors.UnauthorizedWrap("invalid token", err)
	}

	idStr := stringClaim(tok, claimID)
	if idStr == "" {
		idStr = tok.Subject()
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, apperrors.UnauthorizedWrap("invalid token", err)
	}

	role := models.Role(stringClaim(tok, claimRole))
	if !role.Valid() {
		role = models.RoleUser
	}

	return &models.AccessClaims{
		ID:        id,
		Username:  stringClaim(tok, claimUsername),
		Email:     stringClaim(tok, claimEmail),
		Role:      role,
		IssuedAt:  tok.IssuedAt().Unix(),
		ExpiresAt: tok.Expiration().Unix(),
	}, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
