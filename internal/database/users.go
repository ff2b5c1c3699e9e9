package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, google_id, github_id, username, email, password_hash, role, profile_image, email_verified, created_at, updated_at`

// providerColumns whitelists the column holding each provider's user id
var providerColumns = map[models.Provider]string{
	models.ProviderGoogle: "google_id",
	models.ProviderGitHub: "github_id",
}

// UserRepository is the Postgres credential store
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var googleID, githubID, passwordHash sql.NullString
	err := row.Scan(
		&user.ID,
		&googleID,
		&githubID,
		&user.Username,
		&user.Email,
		&passwordHash,
		&user.Role,
		&user.ProfileImage,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if googleID.Valid {
		user.GoogleID = &googleID.String
	}
	if githubID.Valid {
		user.GitHubID = &githubID.String
	}
	if passwordHash.Valid {
		user.PasswordHash = &passwordHash.String
	}
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, op, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", op, apperrors.NotFound("user not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return user, nil
}

// FindByID retrieves a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "get user", "id = $1", id)
}

// FindByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "get user by email", "LOWER(email) = $1", normalizeEmail(email))
}

// FindByProviderKey retrieves the user linked to the given provider account
func (r *UserRepository) FindByProviderKey(ctx context.Context, key models.ProviderKey) (*models.User, error) {
	column, ok := providerColumns[key.Provider]
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported provider: %s", key.Provider))
	}
	return r.getOne(ctx, "get user by provider key", column+" = $1", key.ID)
}

// Create inserts a new user. Uniqueness violations surface as ConflictError.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if !user.HasCredential() {
		return apperrors.Validation("user must have a password or a linked provider")
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Email = normalizeEmail(user.Email)

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.GoogleID,
		user.GitHubID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.ProfileImage,
		user.EmailVerified,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", conflictOr(err))
	}

	return nil
}

// UpdateFields applies the non-nil fields of update atomically and returns the stored user.
func (r *UserRepository) UpdateFields(ctx context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error) {
	if update.Empty() {
		return r.FindByID(ctx, id)
	}

	query, args, err := buildUserUpdate(id, update, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("update user: %w", apperrors.NotFound("user not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", conflictOr(err))
	}

	return user, nil
}

// buildUserUpdate renders the UPDATE statement for the set fields of update.
func buildUserUpdate(id uuid.UUID, update models.UserUpdate, now time.Time) (string, []any, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Link != nil {
		column, ok := providerColumns[update.Link.Provider]
		if !ok {
			return "", nil, apperrors.Validation(fmt.Sprintf("unsupported provider: %s", update.Link.Provider))
		}
		add(column, update.Link.ID)
	}
	if update.Username != nil {
		add("username", *update.Username)
	}
	if update.ProfileImage != nil {
		add("profile_image", *update.ProfileImage)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.EmailVerified != nil {
		add("email_verified", *update.EmailVerified)
	}
	add("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	return query, args, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
