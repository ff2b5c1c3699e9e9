package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/ulule/limiter/v3"
)

// Each policy table holds a single row under this key
const policyKey = "default"

// CorsPolicyRepository stores the browser origins allowed to call the API.
// The server's CORS reloader polls it and the configure CLI writes it.
type CorsPolicyRepository struct {
	db *DB
}

func NewCorsPolicyRepository(db *DB) *CorsPolicyRepository {
	return &CorsPolicyRepository{db: db}
}

// Get returns the stored policy, or nil when none has been set
func (r *CorsPolicyRepository) Get(ctx context.Context) (*models.CorsPolicy, error) {
	p := &models.CorsPolicy{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, policyKey).Scan(&p.ConfigKey, &p.AllowedOrigins, &p.AllowCredentials, &p.MaxAge, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors policy: %w", err)
	}
	return p, nil
}

// Set validates and upserts p. Origins are stored normalized.
func (r *CorsPolicyRepository) Set(ctx context.Context, p *models.CorsPolicy) error {
	origins, err := ValidateOrigins(p.AllowedOrigins)
	if err != nil {
		return err
	}
	if p.MaxAge < 0 {
		return apperrors.Validation("max_age cannot be negative")
	}
	p.AllowedOrigins = strings.Join(origins, ",")

	now := time.Now()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, policyKey, p.AllowedOrigins, p.AllowCredentials, p.MaxAge, now); err != nil {
		return fmt.Errorf("set cors policy: %w", err)
	}
	return nil
}

// Reset removes the stored policy so the server falls back to FRONTEND_URL.
// It reports whether a policy existed.
func (r *CorsPolicyRepository) Reset(ctx context.Context) (bool, error) {
	return deletePolicy(ctx, r.db, "cors_config")
}

// RatePolicyRepository stores the request rate applied to rate-limited routes
type RatePolicyRepository struct {
	db *DB
}

func NewRatePolicyRepository(db *DB) *RatePolicyRepository {
	return &RatePolicyRepository{db: db}
}

// Get returns the stored policy, or nil when none has been set
func (r *RatePolicyRepository) Get(ctx context.Context) (*models.RatePolicy, error) {
	p := &models.RatePolicy{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, policyKey).Scan(&p.ConfigKey, &p.Rate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate policy: %w", err)
	}
	return p, nil
}

// Set validates and upserts the rate in p
func (r *RatePolicyRepository) Set(ctx context.Context, p *models.RatePolicy) error {
	rate, err := ValidateRate(p.Rate)
	if err != nil {
		return err
	}
	p.Rate = rate

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, policyKey, rate, time.Now()); err != nil {
		return fmt.Errorf("set rate policy: %w", err)
	}
	return nil
}

// Reset removes the stored rate. The server re-seeds its default on next reload.
func (r *RatePolicyRepository) Reset(ctx context.Context) (bool, error) {
	return deletePolicy(ctx, r.db, "ratelimit_config")
}

// table is always one of the constant policy table names above
func deletePolicy(ctx context.Context, db *DB, table string) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE config_key = $1", policyKey)
	if err != nil {
		return false, fmt.Errorf("reset %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset %s: %w", table, err)
	}
	return n > 0, nil
}

// ValidateOrigins splits raw and checks that every entry is "*" or a bare
// http(s) origin without path, query or fragment.
func ValidateOrigins(raw string) ([]string, error) {
	origins := models.SplitOrigins(raw)
	if len(origins) == 0 {
		return nil, apperrors.Validation("allowed_origins cannot be empty")
	}
	for i, o := range origins {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" ||
			(u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
			return nil, apperrors.Validation(fmt.Sprintf("invalid origin %q: expected scheme://host[:port]", o))
		}
		origins[i] = u.Scheme + "://" + u.Host
	}
	return origins, nil
}

// ValidateRate checks a limiter rate such as "5-S", "100-M" or "1000-H"
// and returns it upper-cased.
func ValidateRate(raw string) (string, error) {
	rate := strings.ToUpper(strings.TrimSpace(raw))
	if rate == "" {
		return "", apperrors.Validation("rate cannot be empty")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", apperrors.Validation(fmt.Sprintf("invalid rate %q: expected <limit>-<S|M|H|D>", raw))
	}
	return rate, nil
}
