package models

import (
	"strings"
	"time"
)

// Defaults for a CORS policy created from the CLI
const (
	DefaultCorsMaxAge           = 86400
	DefaultCorsAllowCredentials = true
)

// CorsPolicy is the browser-origin policy operators can change at runtime
type CorsPolicy struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins"`
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Origins returns the stored comma-separated origins as a list
func (p *CorsPolicy) Origins() []string {
	if p == nil {
		return nil
	}
	return SplitOrigins(p.AllowedOrigins)
}

// SplitOrigins splits a comma-separated origin list, dropping blanks and duplicates
func SplitOrigins(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		o := strings.TrimSpace(part)
		if o == "" {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// RatePolicy is the request rate for rate-limited routes, in limiter
// notation such as "5-S" or "100-M".
type RatePolicy struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
