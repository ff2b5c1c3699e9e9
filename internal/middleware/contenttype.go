package middleware

import (
	"mime"
	"net/http"

	"go.uber.org/zap"
)

// ContentType requires a JSON Content-Type on POST, PUT and PATCH requests
// that carry a body.
func ContentType(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPatch, http.MethodPut:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 && len(r.TransferEncoding) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				writeError(w, http.StatusBadRequest, "Content-Type header is required", logger)
				return
			}
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
