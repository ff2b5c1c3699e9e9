package middleware

import (
	"net/http"

	logpkg "github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/request"
	"go.uber.org/zap"
)

// Audit logs rejected credentials, denied admin operations and rate limit hits
func Audit(logger *zap.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			var event, reason string
			switch rec.status {
			case http.StatusUnauthorized:
				event, reason = "security_event", "unauthenticated"
			case http.StatusForbidden:
				event, reason = "security_event", "forbidden"
			case http.StatusTooManyRequests:
				event, reason = "rate_limit_violation", "rate_limited"
			default:
				return
			}

			logger.Warn(event,
				zap.String("reason", reason),
				zap.Int("status_code", rec.status),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r, trustProxy), logpkg.MaxGeneralStringLength)),
			)
		})
	}
}
