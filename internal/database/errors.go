package database

import (
	"errors"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// constraintMessages maps unique index names to client-facing conflict messages
var constraintMessages = map[string]string{
	"users_email_lower_unique":     "an account with this email already exists",
	"users_google_id_unique":       "this google account is already linked to another user",
	"users_github_id_unique":       "this github account is already linked to another user",
	"cars_plate_unique":            "a car with this license plate already exists",
	"oauth_providers_provider_key": "provider is already configured",
}

// isUniqueViolation reports whether err is a Postgres unique_violation and returns the constraint name.
func isUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// conflictOr converts a unique violation into a ConflictError and returns any other error unchanged.
func conflictOr(err error) error {
	constraint, ok := isUniqueViolation(err)
	if !ok {
		return err
	}
	msg, known := constraintMessages[constraint]
	if !known {
		msg = "record already exists"
	}
	return apperrors.ConflictWrap(msg, err)
}
