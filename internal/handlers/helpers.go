package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	logpkg "github.com/benvon/drivenova/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxClientMessageLength caps error text echoed back to API clients
const maxClientMessageLength = 200

type successEnvelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type errorEnvelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeEnvelope(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSON wraps data in the success envelope
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, successEnvelope{Success: true, Data: data, Timestamp: timestamp()})
}

// clientMessage trims text that is about to be shown to a caller
func clientMessage(message string) string {
	return logpkg.SanitizeString(message, maxClientMessageLength)
}

// respondError maps err onto its status code. Unexpected errors are logged in
// full and reported to the caller without detail.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
	writeEnvelope(w, status, errorEnvelope{
		Error:     http.StatusText(status),
		Message:   clientMessage(apperrors.MessageOf(err)),
		Timestamp: timestamp(),
	})
}

// decodeJSON reads a single JSON object from the request body into dst
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return apperrors.Validation("request body is required")
	case errors.As(err, &maxErr):
		return apperrors.Validation("request body too large")
	default:
		return apperrors.Validation("invalid request body")
	}
}

// pathUUID parses the named route variable as a UUID
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid " + name)
	}
	return id, nil
}
