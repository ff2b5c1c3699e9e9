package request

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the client address with the port dropped, so every
// connection from one host shares a key. X-Forwarded-For (first entry) and
// X-Real-IP are honoured only when trustProxy is set, since any client can
// send them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFunc binds trustProxy for use as a key getter
func ClientIPFunc(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		return ClientIP(r, trustProxy)
	}
}

// BearerToken returns the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
