package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/middleware"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/identity"
	"github.com/benvon/drivenova/internal/services/oauth"
	"github.com/benvon/drivenova/internal/services/token"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handler-test-secret"

// mockUserStore is an in-memory credential store
type mockUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *mockUserStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (s *mockUserStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *mockUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *mockUserStore) FindByProviderKey(_ context.Context, key models.ProviderKey) (*models.User, error) {
	return s.find(func(u *models.User) bool {
		id := u.ProviderID(key.Provider)
		return id != nil && *id == key.ID
	})
}

func (s *mockUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.Conflict("an account with this email already exists")
		}
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *mockUserStore) UpdateFields(_ context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	if update.Link != nil {
		u.SetProviderID(update.Link.Provider, update.Link.ID)
	}
	if update.Username != nil {
		u.Username = *update.Username
	}
	if update.ProfileImage != nil {
		u.ProfileImage = *update.ProfileImage
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	c := *u
	return &c, nil
}

func (s *mockUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// mockCarRepo is an in-memory car catalog
type mockCarRepo struct {
	mu   sync.Mutex
	cars map[uuid.UUID]*models.Car
	// lastFilter records the filter of the most recent List call
	lastFilter models.CarFilter
	listErr    error
}

func newMockCarRepo(cars ...*models.Car) *mockCarRepo {
	m := &mockCarRepo{cars: make(map[uuid.UUID]*models.Car)}
	for _, c := range cars {
		m.cars[c.ID] = c
	}
	return m
}

func (m *mockCarRepo) List(_ context.Context, filter models.CarFilter) ([]*models.Car, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.Car{}
	for _, c := range m.cars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCarRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Car, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cars[id]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("car not found")
}

func (m *mockCarRepo) Create(_ context.Context, car *models.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cars {
		if c.Plate == car.Plate {
			return apperrors.Conflict("a car with this plate already exists")
		}
	}
	car.CreatedAt = time.Now().UTC()
	car.UpdatedAt = car.CreatedAt
	m.cars[car.ID] = car
	return nil
}

func (m *mockCarRepo) Update(_ context.Context, car *models.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cars[car.ID]; !ok {
		return apperrors.NotFound("car not found")
	}
	m.cars[car.ID] = car
	return nil
}

func (m *mockCarRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cars[id]; !ok {
		return apperrors.NotFound("car not found")
	}
	delete(m.cars, id)
	return nil
}

// mockBookingRepo is an in-memory booking store
type mockBookingRepo struct {
	mu       sync.Mutex
	bookings []*models.Booking
}

func (m *mockBookingRepo) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.CreatedAt = time.Now().UTC()
	m.bookings = append(m.bookings, b)
	return nil
}

func (m *mockBookingRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Booking{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) ListAll(context.Context) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Booking{}, m.bookings...), nil
}

// mockContactRepo records stored contact messages
type mockContactRepo struct {
	mu       sync.Mutex
	messages []*models.ContactMessage
}

func (m *mockContactRepo) Create(_ context.Context, msg *models.ContactMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

type sentNotification struct {
	kind    string
	subject string
}

// mockNotifier records notifications
type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (m *mockNotifier) Notify(_ context.Context, kind, subject, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{kind: kind, subject: subject})
}

func (m *mockNotifier) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.kind
	}
	return out
}

// mockProvider returns a fixed identity on exchange
type mockProvider struct {
	name     models.Provider
	callback identity.ProviderCallback
	err      error
}

func (p *mockProvider) Name() models.Provider { return p.name }

func (p *mockProvider) AuthCodeURL(state, verifier string) string {
	return "https://idp.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *mockProvider) Exchange(context.Context, string, string) (*identity.ProviderCallback, error) {
	if p.err != nil {
		return nil, p.err
	}
	cb := p.callback
	cb.Provider = p.name
	return &cb, nil
}

// testAPI wires every handler against in-memory collaborators
type testAPI struct {
	router   *mux.Router
	users    *mockUserStore
	cars     *mockCarRepo
	bookings *mockBookingRepo
	contacts *mockContactRepo
	notifier *mockNotifier
	issuer   *token.Issuer
	provider *mockProvider
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		users:    newMockUserStore(),
		cars:     newMockCarRepo(),
		bookings: &mockBookingRepo{},
		contacts: &mockContactRepo{},
		notifier: &mockNotifier{},
		provider: &mockProvider{name: models.ProviderGoogle},
	}

	issuer, err := token.NewIssuer(testSecret, token.DefaultTTL)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	api.issuer = issuer

	resolver, err := identity.NewResolver(api.users, bcrypt.MinCost, nil)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	logger := zap.NewNop()
	guard := middleware.NewGuard(issuer, logger)

	r := mux.NewRouter()
	NewAuthHandler(AuthHandlerConfig{
		Resolver:    resolver,
		Users:       api.users,
		Tokens:      issuer,
		Providers:   oauth.NewRegistry(api.provider),
		Guard:       guard,
		Notifier:    api.notifier,
		FrontendURL: "http://app.test",
		Logger:      logger,
	}).RegisterRoutes(r.PathPrefix("/api/auth").Subrouter())
	NewCarHandler(api.cars, guard, logger).RegisterRoutes(r.PathPrefix("/api/cars").Subrouter())
	NewBookingHandler(api.bookings, guard, api.notifier, logger).RegisterRoutes(r.PathPrefix("/api/bookings").Subrouter())
	NewContactHandler(api.contacts, api.notifier, nil, logger).RegisterRoutes(r.PathPrefix("/api/contact").Subrouter())
	api.router = r

	return api
}

// do sends a request with an optional JSON body and bearer token
func (api *testAPI) do(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	req := newTestRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

// tokenFor issues a token for a user with role
func (api *testAPI) tokenFor(t *testing.T, role models.Role) (string, uuid.UUID) {
	t.Helper()
	user := &models.User{ID: uuid.New(), Username: "tester", Email: uuid.NewString() + "@x.com", Role: role}
	tok, err := api.issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return tok, user.ID
}

// envelope decodes the success envelope and returns its data
func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}
