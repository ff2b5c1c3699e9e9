// Package mongostore implements the credential store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const usersCollection = "users"

// providerFields maps each provider to the document field holding its user id
var providerFields = map[models.Provider]string{
	models.ProviderGoogle: "google_id",
	models.ProviderGitHub: "github_id",
}

// userDocument is the stored form of models.User
type userDocument struct {
	ID            string    `bson:"_id"`
	GoogleID      *string   `bson:"google_id,omitempty"`
	GitHubID      *string   `bson:"github_id,omitempty"`
	Username      string    `bson:"username"`
	Email         string    `bson:"email"`
	PasswordHash  *string   `bson:"password_hash,omitempty"`
	Role          string    `bson:"role"`
	ProfileImage  string    `bson:"profile_image"`
	EmailVerified bool      `bson:"email_verified"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toDocument(u *models.User) userDocument {
	return userDocument{
		ID:            u.ID.String(),
		GoogleID:      u.GoogleID,
		GitHubID:      u.GitHubID,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		Role:          string(u.Role),
		ProfileImage:  u.ProfileImage,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (d userDocument) toUser() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	return &models.User{
		ID:            id,
		GoogleID:      d.GoogleID,
		GitHubID:      d.GitHubID,
		Username:      d.Username,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		Role:          models.Role(d.Role),
		ProfileImage:  d.ProfileImage,
		EmailVerified: d.EmailVerified,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

// Client owns the Mongo connection backing the store
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and selects database
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &Client{client: client, db: client.Database(database)}, nil
}

// HealthCheck pings the primary
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from Mongo
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Users returns the credential store on this connection
func (c *Client) Users() *UserStore {
	return &UserStore{coll: c.db.Collection(usersCollection)}
}

// UserStore is the Mongo credential store
type UserStore struct {
	coll *mongo.Collection
}

// EnsureIndexes creates the uniqueness indexes the store relies on.
// Provider ids are sparse so that unlinked users do not collide.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	caseInsensitive := &options.Collation{Locale: "en", Strength: 2}
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("users_email_unique").SetUnique(true).SetCollation(caseInsensitive),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetName("users_google_id_unique").SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "github_id", Value: 1}},
			Options: options.Index().SetName("users_github_id_unique").SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDocument
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", op, apperrors.NotFound("user not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return doc.toUser()
}

// FindByID retrieves a user by ID
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findOne(ctx, "get user", bson.D{{Key: "_id", Value: id.String()}})
}

// FindByEmail retrieves a user by email, case-insensitively
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "get user by email", bson.D{{Key: "email", Value: normalizeEmail(email)}})
}

// FindByProviderKey retrieves the user linked to the given provider account
func (s *UserStore) FindByProviderKey(ctx context.Context, key models.ProviderKey) (*models.User, error) {
	field, ok := providerFields[key.Provider]
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported provider: %s", key.Provider))
	}
	return s.findOne(ctx, "get user by provider key", bson.D{{Key: field, Value: key.ID}})
}

// Create inserts a new user. Duplicate keys surface as ConflictError.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if !user.HasCredential() {
		return apperrors.Validation("user must have a password or a linked provider")
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Email = normalizeEmail(user.Email)
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, toDocument(user)); err != nil {
		return fmt.Errorf("failed to create user: %w", conflictOr(err))
	}
	return nil
}

// UpdateFields applies the non-nil fields of update atomically and returns the stored user.
func (s *UserStore) UpdateFields(ctx context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error) {
	if update.Empty() {
		return s.FindByID(ctx, id)
	}

	set, err := buildSet(update, time.Now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return nil, err
	}

	var doc userDocument
	err = s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update user: %w", apperrors.NotFound("user not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", conflictOr(err))
	}
	return doc.toUser()
}

func buildSet(update models.UserUpdate, now time.Time) (bson.D, error) {
	var set bson.D
	if update.Link != nil {
		field, ok := providerFields[update.Link.Provider]
		if !ok {
			return nil, apperrors.Validation(fmt.Sprintf("unsupported provider: %s", update.Link.Provider))
		}
		set = append(set, bson.E{Key: field, Value: update.Link.ID})
	}
	if update.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *update.Username})
	}
	if update.ProfileImage != nil {
		set = append(set, bson.E{Key: "profile_image", Value: *update.ProfileImage})
	}
	if update.Role != nil {
		set = append(set, bson.E{Key: "role", Value: string(*update.Role)})
	}
	if update.EmailVerified != nil {
		set = append(set, bson.E{Key: "email_verified", Value: *update.EmailVerified})
	}
	set = append(set, bson.E{Key: "updated_at", Value: now})
	return set, nil
}

// conflictOr converts a duplicate key error into a ConflictError naming the violated key.
func conflictOr(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "google_id"):
		return apperrors.ConflictWrap("this google account is already linked to another user", err)
	case strings.Contains(msg, "github_id"):
		return apperrors.ConflictWrap("this github account is already linked to another user", err)
	default:
		return apperrors.ConflictWrap("an account with this email already exists", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
