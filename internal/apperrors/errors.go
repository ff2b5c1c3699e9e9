package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for propagation and HTTP mapping.
type Kind int

const (
	// KindInternal is any unexpected failure (500, no detail leaked)
	KindInternal Kind = iota
	// KindValidation is malformed or missing input (400)
	KindValidation
	// KindConflict means a uniqueness invariant would be violated (409)
	KindConflict
	// KindAuth means identity could not be established from credentials (401)
	KindAuth
	// KindUnauthorized means the bearer credential is missing or invalid (401)
	KindUnauthorized
	// KindForbidden means identity is established but privilege is insufficient (403)
	KindForbidden
	// KindNotFound means the addressed record does not exist (404)
	KindNotFound
	// KindConfiguration is a startup configuration defect; never returned per request
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Error is an application error carrying a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a ValidationError
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Conflict returns a ConflictError
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// ConflictWrap returns a ConflictError wrapping the driver error that caused it.
func ConflictWrap(message string, err error) error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// Auth returns an AuthError
func Auth(message string) error {
	return &Error{Kind: KindAuth, Message: message}
}

// AuthWrap returns an AuthError wrapping a sentinel or cause.
func AuthWrap(message string, err error) error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

// Unauthorized returns an Unauthorized error
func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// UnauthorizedWrap returns an Unauthorized error wrapping its cause.
func UnauthorizedWrap(message string, err error) error {
	return &Error{Kind: KindUnauthorized, Message: message, Err: err}
}

// Forbidden returns a Forbidden error
func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound returns a NotFound error
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Configuration returns a ConfigurationError
func Configuration(message string) error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err, or a generic one for unexpected errors.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal && appErr.Kind != KindConfiguration {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

func IsValidation(err error) bool   { return err != nil && KindOf(err) == KindValidation }
func IsConflict(err error) bool     { return err != nil && KindOf(err) == KindConflict }
func IsAuth(err error) bool         { return err != nil && KindOf(err) == KindAuth }
func IsUnauthorized(err error) bool { return err != nil && KindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return err != nil && KindOf(err) == KindForbidden }
func IsNotFound(err error) bool     { return err != nil && KindOf(err) == KindNotFound }
func IsConfiguration(err error) bool {
	return err != nil && KindOf(err) == KindConfiguration
}

// HTTPStatus maps err to the status code returned to API clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
