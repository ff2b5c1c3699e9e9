// Package identity maps proofs of identity (local credentials or a provider
// callback) onto stored users, creating and linking accounts as needed.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "invalid email or password"

// ErrEmailMissing marks a provider callback that carried no email address.
var ErrEmailMissing = errors.New("provider returned no email")

// CredentialStore is the persistence contract for users. Implementations
// enforce uniqueness of email and of each provider key, report missing
// records as NotFound and uniqueness violations as Conflict.
type CredentialStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByProviderKey(ctx context.Context, key models.ProviderKey) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error)
}

// Proof is one of LocalRegister, LocalLogin or ProviderCallback
type Proof interface {
	proof()
}

// LocalRegister creates an account from local credentials
type LocalRegister struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LocalLogin authenticates with local credentials
type LocalLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProviderCallback carries the identity facts returned by an external provider
type ProviderCallback struct {
	Provider    models.Provider
	ProviderID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

func (LocalRegister) proof()    {}
func (LocalLogin) proof()       {}
func (ProviderCallback) proof() {}

// Result is the outcome of a successful resolution
type Result struct {
	User *models.User
	// Created is true only when this resolution inserted the user
	Created bool
	// Linked is true when a provider key was attached to an existing user
	Linked bool
}

// Resolver resolves proofs against a CredentialStore
type Resolver struct {
	store  CredentialStore
	cost   int
	logger *zap.Logger
	// dummyHash keeps unknown-email logins as slow as real ones
	dummyHash []byte
}

// NewResolver creates a resolver hashing passwords at the given bcrypt cost.
// A cost of 0 selects bcrypt.DefaultCost.
func NewResolver(store CredentialStore, cost int, log *zap.Logger) (*Resolver, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, apperrors.Configuration(fmt.Sprintf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("drivenova-placeholder"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &Resolver{store: store, cost: cost, logger: log, dummyHash: dummy}, nil
}

// Resolve dispatches p to the matching resolution path
func (r *Resolver) Resolve(ctx context.Context, p Proof) (*Result, error) {
	switch p := p.(type) {
	case LocalRegister:
		return r.Register(ctx, p)
	case LocalLogin:
		return r.Login(ctx, p)
	case ProviderCallback:
		return r.ResolveProvider(ctx, p)
	default:
		return nil, fmt.Errorf("unsupported proof type %T", p)
	}
}

// Register creates a local account
func (r *Resolver) Register(ctx context.Context, req LocalRegister) (*Result, error) {
	username := validation.SanitizeText(req.Username)
	email := validation.NormalizeEmail(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, apperrors.Validation("username, email and password are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	existing, err := r.store.FindByEmail(ctx, email)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	user := &models.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		PasswordHash:  &hashStr,
		Role:          models.RoleUser,
		EmailVerified: false,
	}
	if err := r.store.Create(ctx, user); err != nil {
		return nil, err
	}

	r.logger.Info("user_registered",
		zap.String("user_id", user.ID.String()),
	)
	return &Result{User: user, Created: true}, nil
}

// Login verifies local credentials
func (r *Resolver) Login(ctx context.Context, req LocalLogin) (*Result, error) {
	email := validation.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperrors.Validation("email and password are required")
	}

	user, err := r.store.FindByEmail(ctx, email)
	if apperrors.IsNotFound(err) {
		_ = bcrypt.CompareHashAndPassword(r.dummyHash, []byte(req.Password))
		return nil, apperrors.Auth(invalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(r.dummyHash, []byte(req.Password))
		return nil, apperrors.Auth(providerOnlyMessage(user))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		r.logger.Debug("login_password_mismatch",
			zap.String("user_id", user.ID.String()),
		)
		return nil, apperrors.Auth(invalidCredentials)
	}

	return &Result{User: user}, nil
}

func providerOnlyMessage(user *models.User) string {
	linked := user.LinkedProviders()
	if len(linked) == 0 {
		return invalidCredentials
	}
	names := make([]string, len(linked))
	for i, p := range linked {
		names[i] = providerTitle(p)
	}
	return fmt.Sprintf("this account uses %s sign-in; log in with %s instead", strings.Join(names, " or "), names[0])
}

func providerTitle(p models.Provider) string {
	switch p {
	case models.ProviderGitHub:
		return "GitHub"
	case models.ProviderGoogle:
		return "Google"
	default:
		return string(p)
	}
}

// ResolveProvider finds, links or creates the user for a provider identity.
// Lookup order is provider key, then email, then a new account.
func (r *Resolver) ResolveProvider(ctx context.Context, cb ProviderCallback) (*Result, error) {
	if !cb.Provider.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported provider: %s", cb.Provider))
	}
	if strings.TrimSpace(cb.ProviderID) == "" {
		return nil, apperrors.Auth("provider did not return an account id")
	}
	email := validation.NormalizeEmail(cb.Email)
	if email == "" {
		return nil, apperrors.AuthWrap(fmt.Sprintf("%s account did not return an email", providerTitle(cb.Provider)), ErrEmailMissing)
	}

	key := models.ProviderKey{Provider: cb.Provider, ID: cb.ProviderID}

	user, err := r.store.FindByProviderKey(ctx, key)
	if err == nil {
		return &Result{User: user}, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up provider key: %w", err)
	}

	avatar := strings.TrimSpace(cb.AvatarURL)
	if validation.ValidateProfileImage(avatar) != nil {
		avatar = ""
	}

	existing, err := r.store.FindByEmail(ctx, email)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return r.link(ctx, existing, key, avatar)
	}

	user = &models.User{
		ID:            uuid.New(),
		Username:      deriveUsername(cb.DisplayName, email, key),
		Email:         email,
		Role:          models.RoleUser,
		ProfileImage:  avatar,
		EmailVerified: true,
	}
	user.SetProviderID(cb.Provider, cb.ProviderID)

	if err := r.store.Create(ctx, user); err != nil {
		return nil, err
	}

	r.logger.Info("user_created_from_provider",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", string(cb.Provider)),
	)
	return &Result{User: user, Created: true}, nil
}

func (r *Resolver) link(ctx context.Context, existing *models.User, key models.ProviderKey, avatar string) (*Result, error) {
	if current := existing.ProviderID(key.Provider); current != nil && *current != "" && *current != key.ID {
		return nil, apperrors.Conflict(fmt.Sprintf("this email is already linked to a different %s account", providerTitle(key.Provider)))
	}

	update := models.UserUpdate{Link: &key}
	if existing.ProfileImage == "" && avatar != "" {
		update.ProfileImage = &avatar
	}

	user, err := r.store.UpdateFields(ctx, existing.ID, update)
	if err != nil {
		return nil, err
	}

	r.logger.Info("provider_linked",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", string(key.Provider)),
		zap.String("email", logger.SanitizeEmail(user.Email)),
	)
	return &Result{User: user, Linked: true}, nil
}

// deriveUsername picks the display name, then the email local part, then a synthetic name
func deriveUsername(displayName, email string, key models.ProviderKey) string {
	if name := validation.SanitizeText(displayName); name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return fmt.Sprintf("%suser_%s", key.Provider, key.ID)
}
