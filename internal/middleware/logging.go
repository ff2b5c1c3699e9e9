package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Logging writes one access log entry per request. A caller-supplied
// X-Request-ID is kept if it is a UUID; otherwise a new one is issued.
// Server errors are logged at error level. Forwarding headers feed the
// logged ip only when trustProxy is set.
func Logging(logger *zap.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			level := zapcore.InfoLevel
			if rec.status >= http.StatusInternalServerError {
				level = zapcore.ErrorLevel
			}
			logger.Log(level, "http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.String("ip", request.ClientIP(r, trustProxy)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
