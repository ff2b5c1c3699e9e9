package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/middleware"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/identity"
	"github.com/benvon/drivenova/internal/services/notify"
	"github.com/benvon/drivenova/internal/services/oauth"
	"github.com/benvon/drivenova/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// IdentityResolver resolves an authentication proof to a user
type IdentityResolver interface {
	Resolve(ctx context.Context, p identity.Proof) (*identity.Result, error)
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// UserStore is the subset of the credential store used by profile routes
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error)
}

// AuthHandlerConfig wires the collaborators of AuthHandler
type AuthHandlerConfig struct {
	Resolver    IdentityResolver
	Users       UserStore
	Tokens      TokenIssuer
	Providers   *oauth.Registry
	Flow        oauth.Flow
	Guard       *middleware.Guard
	Notifier    notify.Notifier
	FrontendURL string
	Logger      *zap.Logger
}

// AuthHandler handles local and provider authentication
type AuthHandler struct {
	resolver    IdentityResolver
	users       UserStore
	tokens      TokenIssuer
	providers   *oauth.Registry
	flow        oauth.Flow
	guard       *middleware.Guard
	notifier    notify.Notifier
	frontendURL string
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	h := &AuthHandler{
		resolver:    cfg.Resolver,
		users:       cfg.Users,
		tokens:      cfg.Tokens,
		providers:   cfg.Providers,
		flow:        cfg.Flow,
		guard:       cfg.Guard,
		notifier:    cfg.Notifier,
		frontendURL: cfg.FrontendURL,
		logger:      cfg.Logger,
	}
	if h.providers == nil {
		h.providers = oauth.NewRegistry()
	}
	if h.notifier == nil {
		h.notifier = notify.Nop{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// RegisterRoutes registers auth routes on the given router
// The router should already have the /api/auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.Handle("/me", h.guard.Protect(h.GetMe)).Methods("GET")
	r.Handle("/me", h.guard.Protect(h.UpdateMe)).Methods("PATCH")
	r.HandleFunc("/{provider}", h.BeginProvider).Methods("GET")
	r.HandleFunc("/{provider}/callback", h.ProviderCallback).Methods("GET")
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UpdateProfileRequest represents a profile update
type UpdateProfileRequest struct {
	Username     *string `json:"username,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// Register creates a local account and returns its token
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req identity.LocalRegister
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	token, err := h.tokens.Issue(res.User)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if res.Created {
		subject, body := notify.NewUserMessage(res.User, "email")
		h.notifier.Notify(r.Context(), notify.KindNewUser, subject, body)
	}

	respondJSON(w, http.StatusCreated, AuthResponse{Token: token, User: res.User})
}

// Login verifies local credentials and returns a token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req identity.LocalLogin
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	token, err := h.tokens.Issue(res.User)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{Token: token, User: res.User})
}

// GetMe returns the stored record of the caller
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request, id models.Identity) {
	user, err := h.users.FindByID(r.Context(), id.ID)
	if apperrors.IsNotFound(err) {
		respondError(w, r, h.logger, apperrors.Unauthorized("user no longer exists"))
		return
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// UpdateMe changes the caller's username or profile image
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var update models.UserUpdate
	if req.Username != nil {
		username := validation.SanitizeText(*req.Username)
		if username == "" {
			respondError(w, r, h.logger, apperrors.Validation("username cannot be empty"))
			return
		}
		update.Username = &username
	}
	if req.ProfileImage != nil {
		image := strings.TrimSpace(*req.ProfileImage)
		if err := validation.ValidateProfileImage(image); err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		update.ProfileImage = &image
	}
	if update.Empty() {
		respondError(w, r, h.logger, apperrors.Validation("nothing to update"))
		return
	}

	user, err := h.users.UpdateFields(r.Context(), id.ID, update)
	if apperrors.IsNotFound(err) {
		respondError(w, r, h.logger, apperrors.Unauthorized("user no longer exists"))
		return
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// BeginProvider redirects the browser to the provider's consent page
func (h *AuthHandler) BeginProvider(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Get(models.Provider(mux.Vars(r)["provider"]))
	if !ok {
		respondError(w, r, h.logger, apperrors.NotFound("unknown provider"))
		return
	}

	target, err := h.flow.Begin(w, provider)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// ProviderCallback completes a provider login and hands the token to the
// front end. Failures redirect with an error code instead of rendering JSON.
func (h *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	name := models.Provider(mux.Vars(r)["provider"])
	provider, ok := h.providers.Get(name)
	if !ok {
		respondError(w, r, h.logger, apperrors.NotFound("unknown provider"))
		return
	}

	token, err := h.completeProvider(w, r, provider)
	if err != nil {
		code := oauth.ErrorCode(err)
		h.logger.Warn("oauth_callback_failed",
			zap.String("provider", string(name)),
			zap.String("code", code),
			zap.Error(err),
		)
		http.Redirect(w, r, h.frontendRedirect("error", code), http.StatusFound)
		return
	}

	http.Redirect(w, r, h.frontendRedirect("token", token), http.StatusFound)
}

func (h *AuthHandler) completeProvider(w http.ResponseWriter, r *http.Request, provider oauth.Provider) (string, error) {
	ctx := r.Context()

	verifier, err := h.flow.Complete(w, r)
	if err != nil {
		return "", err
	}

	cb, err := provider.Exchange(ctx, r.URL.Query().Get("code"), verifier)
	if err != nil {
		return "", err
	}

	res, err := h.resolver.Resolve(ctx, *cb)
	if err != nil {
		return "", err
	}

	token, err := h.tokens.Issue(res.User)
	if err != nil {
		return "", err
	}

	if res.Created {
		subject, body := notify.NewUserMessage(res.User, string(provider.Name()))
		h.notifier.Notify(ctx, notify.KindNewUser, subject, body)
	}
	return token, nil
}

// frontendRedirect builds FRONTEND_URL with key=value added to its query
func (h *AuthHandler) frontendRedirect(key, value string) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
