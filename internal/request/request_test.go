package request

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	t.Parallel()
	const remote = "10.0.0.1:12345"
	tests := []struct {
		name       string
		headers    map[string]string
		remote     string
		trustProxy bool
		wantIP     string
	}{
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": "1.2.3.4"}, remote, true, "1.2.3.4"},
		{"x-forwarded-for first", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8 "}, remote, true, "1.2.3.4"},
		{"x-real-ip", map[string]string{"X-Real-IP": "9.9.9.9"}, remote, true, "9.9.9.9"},
		{"xff over xri", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "9.9.9.9"}, remote, true, "1.2.3.4"},
		{"empty xff entry falls through", map[string]string{"X-Forwarded-For": " , 5.6.7.8"}, remote, true, "10.0.0.1"},
		{"untrusted x-forwarded-for", map[string]string{"X-Forwarded-For": "1.2.3.4"}, remote, false, "10.0.0.1"},
		{"untrusted x-real-ip", map[string]string{"X-Real-IP": "9.9.9.9"}, remote, false, "10.0.0.1"},
		{"remote addr without port", nil, remote, false, "10.0.0.1"},
		{"ipv6 remote addr", nil, "[::1]:8080", false, "::1"},
		{"remote addr not host:port", nil, "unix-socket", false, "unix-socket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			r.RemoteAddr = tt.remote
			if got := ClientIP(r, tt.trustProxy); got != tt.wantIP {
				t.Errorf("ClientIP() = %q, want %q", got, tt.wantIP)
			}
			if got := ClientIPFunc(tt.trustProxy)(r); got != tt.wantIP {
				t.Errorf("ClientIPFunc() = %q, want %q", got, tt.wantIP)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"missing header", "", "", false},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", false},
		{"scheme only", "Bearer", "", false},
		{"empty token", "Bearer   ", "", false},
		{"token without scheme", "abc.def.ghi", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(r)
			if token != tt.wantToken || ok != tt.wantOK {
				t.Errorf("BearerToken() = (%q, %v), want (%q, %v)", token, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}
