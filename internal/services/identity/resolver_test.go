package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory CredentialStore enforcing the same uniqueness rules as the real stores
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User

	// hooks let tests simulate races and failures
	beforeCreate func(*models.User)
	findErr      error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*models.User)}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return clone(u), nil
	}
	return nil, apperrors.NotFound("user not found")
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (s *memStore) FindByProviderKey(_ context.Context, key models.ProviderKey) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if id := u.ProviderID(key.Provider); id != nil && *id == key.ID {
			return clone(u), nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (s *memStore) conflicts(candidate *models.User) error {
	for _, u := range s.users {
		if u.ID == candidate.ID {
			continue
		}
		if strings.EqualFold(u.Email, candidate.Email) {
			return apperrors.Conflict("an account with this email already exists")
		}
		for _, p := range models.SupportedProviders {
			a, b := u.ProviderID(p), candidate.ProviderID(p)
			if a != nil && b != nil && *a == *b {
				return apperrors.Conflict("provider account already linked")
			}
		}
	}
	return nil
}

func (s *memStore) Create(_ context.Context, user *models.User) error {
	if s.beforeCreate != nil {
		s.beforeCreate(user)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !user.HasCredential() {
		return apperrors.Validation("user must have a password or a linked provider")
	}
	if err := s.conflicts(user); err != nil {
		return err
	}
	now := time.Now().UTC()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = clone(user)
	return nil
}

func (s *memStore) UpdateFields(_ context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	next := clone(u)
	if update.Link != nil {
		next.SetProviderID(update.Link.Provider, update.Link.ID)
	}
	if update.ProfileImage != nil {
		next.ProfileImage = *update.ProfileImage
	}
	if update.Username != nil {
		next.Username = *update.Username
	}
	if update.Role != nil {
		next.Role = *update.Role
	}
	if err := s.conflicts(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.users[id] = next
	return clone(next), nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func newTestResolver(t *testing.T, store CredentialStore) *Resolver {
	t.Helper()
	r, err := NewResolver(store, bcrypt.MinCost, nil)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return r
}

func TestNewResolver_InvalidCost(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(newMemStore(), 99, nil)
	if apperrors.KindOf(err) != apperrors.KindConfiguration {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, newMemStore())

	tests := []struct {
		name string
		req  LocalRegister
	}{
		{"missing username", LocalRegister{Email: "a@x.com", Password: "secret1"}},
		{"missing email", LocalRegister{Username: "a", Password: "secret1"}},
		{"missing password", LocalRegister{Username: "a", Email: "a@x.com"}},
		{"short password", LocalRegister{Username: "a", Email: "a@x.com", Password: "12345"}},
		{"short multibyte password", LocalRegister{Username: "a", Email: "a@x.com", Password: "ééé"}},
		{"password over bcrypt limit", LocalRegister{Username: "a", Email: "a@x.com", Password: strings.Repeat("a", 80)}},
		{"malformed email", LocalRegister{Username: "a", Email: "not-an-email", Password: "secret1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Register(context.Background(), tt.req)
			if !apperrors.IsValidation(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_PasswordLengthBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
	}{
		{"six multibyte characters", "éééééé"},
		{"exactly 72 bytes", strings.Repeat("a", 72)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			r := newTestResolver(t, store)
			if _, err := r.Register(context.Background(), LocalRegister{Username: "ann", Email: "ann@x.com", Password: tt.password}); err != nil {
				t.Fatalf("Expected registration to succeed, got %v", err)
			}
			if _, err := r.Login(context.Background(), LocalLogin{Email: "ann@x.com", Password: tt.password}); err != nil {
				t.Errorf("Expected login to succeed, got %v", err)
			}
		})
	}
}

func TestRegister_CreatesLocalUser(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)

	res, err := r.Register(context.Background(), LocalRegister{Username: "ann", Email: "Ann@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Created {
		t.Error("Expected Created to be true")
	}
	u := res.User
	if u.Email != "ann@x.com" {
		t.Errorf("Expected email 'ann@x.com', got '%s'", u.Email)
	}
	if u.Role != models.RoleUser {
		t.Errorf("Expected role 'user', got '%s'", u.Role)
	}
	if u.EmailVerified {
		t.Error("Expected emailVerified to be false for local registration")
	}
	if !u.HasPassword() || *u.PasswordHash == "secret1" {
		t.Fatal("Expected password to be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte("secret1")); err != nil {
		t.Errorf("Expected stored hash to match password: %v", err)
	}
}

func TestRegister_DuplicateEmailAnyCase(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	if _, err := r.Register(ctx, LocalRegister{Username: "ann", Email: "ann@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := r.Register(ctx, LocalRegister{Username: "ann2", Email: "ANN@X.COM", Password: "secret2"})
	if !apperrors.IsConflict(err) {
		t.Errorf("Expected conflict error, got %v", err)
	}
	if store.count() != 1 {
		t.Errorf("Expected 1 user, got %d", store.count())
	}
}

func TestRegister_RaceSurfacesConflict(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)

	// A concurrent registration wins between our email check and our insert
	store.beforeCreate = func(u *models.User) {
		store.beforeCreate = nil
		hash := "$2a$04$winner"
		winner := &models.User{ID: uuid.New(), Username: "winner", Email: u.Email, PasswordHash: &hash}
		_ = store.Create(context.Background(), winner)
	}

	_, err := r.Register(context.Background(), LocalRegister{Username: "ann", Email: "ann@x.com", Password: "secret1"})
	if !apperrors.IsConflict(err) {
		t.Errorf("Expected conflict error from store, got %v", err)
	}
	if store.count() != 1 {
		t.Errorf("Expected only the winning user, got %d users", store.count())
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	reg, err := r.Register(ctx, LocalRegister{Username: "ann", Email: "ann@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	googleID := "g-only"
	providerOnly := &models.User{ID: uuid.New(), Username: "gina", Email: "gina@x.com", GoogleID: &googleID}
	if err := store.Create(ctx, providerOnly); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tests := []struct {
		name        string
		req         LocalLogin
		wantID      uuid.UUID
		wantMessage string
	}{
		{"success", LocalLogin{Email: "ann@x.com", Password: "secret1"}, reg.User.ID, ""},
		{"success mixed case email", LocalLogin{Email: "ANN@x.com", Password: "secret1"}, reg.User.ID, ""},
		{"wrong password", LocalLogin{Email: "ann@x.com", Password: "wrong"}, uuid.Nil, "invalid email or password"},
		{"unknown email", LocalLogin{Email: "nobody@x.com", Password: "secret1"}, uuid.Nil, "invalid email or password"},
		{"provider only", LocalLogin{Email: "gina@x.com", Password: "secret1"}, uuid.Nil, "this account uses Google sign-in; log in with Google instead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := r.Login(ctx, tt.req)
			if tt.wantMessage != "" {
				if !apperrors.IsAuth(err) {
					t.Fatalf("Expected auth error, got %v", err)
				}
				if msg := apperrors.MessageOf(err); msg != tt.wantMessage {
					t.Errorf("Expected message '%s', got '%s'", tt.wantMessage, msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if res.User.ID != tt.wantID {
				t.Errorf("Expected user %s, got %s", tt.wantID, res.User.ID)
			}
			if res.Created {
				t.Error("Expected Created to be false for login")
			}
		})
	}
}

func TestLogin_StoreFailureIsNotAuthError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.findErr = errors.New("connection refused")
	r := newTestResolver(t, store)

	_, err := r.Login(context.Background(), LocalLogin{Email: "ann@x.com", Password: "secret1"})
	if err == nil || apperrors.IsAuth(err) {
		t.Errorf("Expected internal error, got %v", err)
	}
	if apperrors.HTTPStatus(err) != 500 {
		t.Errorf("Expected status 500, got %d", apperrors.HTTPStatus(err))
	}
}

func TestResolveProvider_MissingEmail(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)

	_, err := r.ResolveProvider(context.Background(), ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g1"})
	if !apperrors.IsAuth(err) {
		t.Errorf("Expected auth error, got %v", err)
	}
	if !errors.Is(err, ErrEmailMissing) {
		t.Errorf("Expected ErrEmailMissing, got %v", err)
	}
	if store.count() != 0 {
		t.Errorf("Expected no user created, got %d", store.count())
	}
}

func TestResolveProvider_MissingAccountID(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)

	_, err := r.ResolveProvider(context.Background(), ProviderCallback{Provider: models.ProviderGoogle, Email: "ann@x.com"})
	if !apperrors.IsAuth(err) {
		t.Errorf("Expected auth error, got %v", err)
	}
	if errors.Is(err, ErrEmailMissing) {
		t.Errorf("Expected missing account id not to be reported as missing email, got %v", err)
	}
	if store.count() != 0 {
		t.Errorf("Expected no user created, got %d", store.count())
	}
}

func TestResolveProvider_CreatesUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cb           ProviderCallback
		wantUsername string
		wantImage    string
	}{
		{
			name:         "display name",
			cb:           ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g1", Email: "Bo@x.com", DisplayName: "Bo Diddley", AvatarURL: "https://img.example.com/bo.png"},
			wantUsername: "Bo Diddley",
			wantImage:    "https://img.example.com/bo.png",
		},
		{
			name:         "email local part",
			cb:           ProviderCallback{Provider: models.ProviderGitHub, ProviderID: "42", Email: "octo@x.com"},
			wantUsername: "octo",
		},
		{
			name:         "invalid avatar dropped",
			cb:           ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g2", Email: "cy@x.com", AvatarURL: "data:image/png;base64,xx"},
			wantUsername: "cy",
			wantImage:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			r := newTestResolver(t, store)

			res, err := r.ResolveProvider(context.Background(), tt.cb)
			if err != nil {
				t.Fatalf("ResolveProvider failed: %v", err)
			}
			if !res.Created || res.Linked {
				t.Errorf("Expected Created=true Linked=false, got %v %v", res.Created, res.Linked)
			}
			u := res.User
			if u.Username != tt.wantUsername {
				t.Errorf("Expected username '%s', got '%s'", tt.wantUsername, u.Username)
			}
			if u.ProfileImage != tt.wantImage {
				t.Errorf("Expected profile image '%s', got '%s'", tt.wantImage, u.ProfileImage)
			}
			if !u.EmailVerified {
				t.Error("Expected emailVerified to be true for provider accounts")
			}
			if u.HasPassword() {
				t.Error("Expected no password hash for provider accounts")
			}
			if id := u.ProviderID(tt.cb.Provider); id == nil || *id != tt.cb.ProviderID {
				t.Errorf("Expected provider id %s, got %v", tt.cb.ProviderID, id)
			}
		})
	}
}

func TestDeriveUsername(t *testing.T) {
	t.Parallel()

	key := models.ProviderKey{Provider: models.ProviderGoogle, ID: "123"}
	if got := deriveUsername("", "@x.com", key); got != "googleuser_123" {
		t.Errorf("Expected synthetic username 'googleuser_123', got '%s'", got)
	}
	if got := deriveUsername("  ", "ann@x.com", key); got != "ann" {
		t.Errorf("Expected 'ann', got '%s'", got)
	}
}

func TestResolveProvider_Idempotent(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()
	cb := ProviderCallback{Provider: models.ProviderGitHub, ProviderID: "42", Email: "octo@x.com", DisplayName: "Octo"}

	first, err := r.ResolveProvider(ctx, cb)
	if err != nil {
		t.Fatalf("first ResolveProvider failed: %v", err)
	}
	second, err := r.ResolveProvider(ctx, cb)
	if err != nil {
		t.Fatalf("second ResolveProvider failed: %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Errorf("Expected same user id, got %s and %s", first.User.ID, second.User.ID)
	}
	if second.Created || second.Linked {
		t.Error("Expected second resolution to return the user unchanged")
	}
	if store.count() != 1 {
		t.Errorf("Expected 1 user, got %d", store.count())
	}
}

func TestResolveProvider_LinkKeepsExistingImage(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	githubID := "42"
	existing := &models.User{ID: uuid.New(), Username: "ann", Email: "ann@x.com", GitHubID: &githubID, ProfileImage: "https://old.example.com/a.png"}
	if err := store.Create(ctx, existing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	res, err := r.ResolveProvider(ctx, ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g1", Email: "ann@x.com", AvatarURL: "https://new.example.com/a.png"})
	if err != nil {
		t.Fatalf("ResolveProvider failed: %v", err)
	}
	if !res.Linked || res.Created {
		t.Errorf("Expected Linked=true Created=false, got %v %v", res.Linked, res.Created)
	}
	if res.User.ProfileImage != "https://old.example.com/a.png" {
		t.Errorf("Expected existing image kept, got '%s'", res.User.ProfileImage)
	}
	if id := res.User.GitHubID; id == nil || *id != "42" {
		t.Error("Expected existing github link kept")
	}
}

func TestResolveProvider_LinkBackfillsEmptyImage(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	if _, err := r.Register(ctx, LocalRegister{Username: "ann", Email: "ann@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := r.ResolveProvider(ctx, ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g1", Email: "ann@x.com", AvatarURL: "https://img.example.com/ann.png"})
	if err != nil {
		t.Fatalf("ResolveProvider failed: %v", err)
	}
	if res.User.ProfileImage != "https://img.example.com/ann.png" {
		t.Errorf("Expected image backfilled, got '%s'", res.User.ProfileImage)
	}
}

func TestResolveProvider_EmailLinkedToOtherAccountOfSameProvider(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	if _, err := r.ResolveProvider(ctx, ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g1", Email: "ann@x.com"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := r.ResolveProvider(ctx, ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g2", Email: "ann@x.com"})
	if !apperrors.IsConflict(err) {
		t.Errorf("Expected conflict error, got %v", err)
	}
}

func TestResolve_Dispatch(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, newMemStore())
	ctx := context.Background()

	res, err := r.Resolve(ctx, LocalRegister{Username: "ann", Email: "ann@x.com", Password: "secret1"})
	if err != nil || !res.Created {
		t.Fatalf("Expected register via Resolve, got %v %v", res, err)
	}
	if _, err := r.Resolve(ctx, LocalLogin{Email: "ann@x.com", Password: "secret1"}); err != nil {
		t.Errorf("Expected login via Resolve, got %v", err)
	}
}

// Register, fail a login, then link a google account onto the same user.
func TestScenario_RegisterLoginLink(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	reg, err := r.Register(ctx, LocalRegister{Username: "ann", Email: "Ann@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.User.Email != "ann@x.com" {
		t.Errorf("Expected email 'ann@x.com', got '%s'", reg.User.Email)
	}

	if _, err := r.Login(ctx, LocalLogin{Email: "ann@x.com", Password: "wrong"}); apperrors.HTTPStatus(err) != 401 {
		t.Errorf("Expected 401 for wrong password, got %v", err)
	}

	linked, err := r.ResolveProvider(ctx, ProviderCallback{Provider: models.ProviderGoogle, ProviderID: "g1", Email: "ann@x.com"})
	if err != nil {
		t.Fatalf("ResolveProvider failed: %v", err)
	}
	if linked.User.ID != reg.User.ID {
		t.Errorf("Expected same user id %s, got %s", reg.User.ID, linked.User.ID)
	}
	if !linked.User.HasPassword() {
		t.Error("Expected password hash to be kept after linking")
	}

	if _, err := r.Login(ctx, LocalLogin{Email: "ann@x.com", Password: "secret1"}); err != nil {
		t.Errorf("Expected password login to still work after linking, got %v", err)
	}
}
