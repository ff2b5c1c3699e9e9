package middleware

import (
	"net/http"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier checks an access token and returns its claims
type TokenVerifier interface {
	Verify(token string) (*models.AccessClaims, error)
}

// IdentityHandlerFunc is a handler that runs with an authenticated caller
type IdentityHandlerFunc func(w http.ResponseWriter, r *http.Request, id models.Identity)

// Guard validates bearer tokens on protected routes
type Guard struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewGuard creates an access guard backed by verifier
func NewGuard(verifier TokenVerifier, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{verifier: verifier, logger: logger}
}

// Authorize resolves the caller of r. Every request is checked on its own;
// nothing is cached between requests.
func (g *Guard) Authorize(r *http.Request) (models.Identity, error) {
	token, ok := request.BearerToken(r)
	if !ok {
		return models.Identity{}, apperrors.Unauthorized("missing bearer token")
	}
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return models.Identity{}, err
	}
	role := claims.Role
	if !role.Valid() {
		role = models.RoleUser
	}
	return models.Identity{ID: claims.ID, Email: claims.Email, Role: role}, nil
}

// Protect runs next only for requests carrying a valid token
func (g *Guard) Protect(next IdentityHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authorize(r)
		if err != nil {
			respondAppError(w, r, err, g.logger)
			return
		}
		next(w, r, id)
	})
}

// RequireAdmin wraps next so it only runs for admins. It is applied on top of
// an already-authorized identity.
func (g *Guard) RequireAdmin(next IdentityHandlerFunc) IdentityHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, id models.Identity) {
		if !id.IsAdmin() {
			respondAppError(w, r, apperrors.Forbidden("admin access required"), g.logger)
			return
		}
		next(w, r, id)
	}
}

// ProtectAdmin is Protect followed by RequireAdmin
func (g *Guard) ProtectAdmin(next IdentityHandlerFunc) http.Handler {
	return g.Protect(g.RequireAdmin(next))
}
