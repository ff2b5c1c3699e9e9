package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	logpkg "github.com/benvon/drivenova/internal/logger"
	"go.uber.org/zap"
)

const genericErrorMessage = "An unexpected error occurred"

// ErrorResponse is the error envelope shared with the handlers package
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ErrorHandler recovers panics into a 500 envelope. The panic value and stack
// are logged, never sent. http.ErrAbortHandler is re-raised for net/http.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("panic_recovered",
					zap.Any("error", p),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.Stack("stack"),
				)
				// A partially written response cannot be replaced
				if !rec.written {
					writeError(w, http.StatusInternalServerError, genericErrorMessage, logger)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// respondAppError maps err to its status and writes the error envelope.
// Server-side failures are logged and reported without detail.
func respondAppError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
	writeError(w, status, apperrors.MessageOf(err), logger)
}

// writeError sends the error envelope with the status text as the error type
func writeError(w http.ResponseWriter, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Success:   false,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		logger.Warn("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
		)
	}
}
