package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	stateCookieName    = "__oauth_state"
	verifierCookieName = "__oauth_pkce"
	flowTTL            = 5 * time.Minute
	flowCookiePath     = "/api/auth"
)

// Flow keeps the state and PKCE verifier of an in-flight authorization in short-lived cookies
type Flow struct {
	Secure bool
}

// Begin stores fresh state and verifier cookies and returns the provider's authorization URL
func (f Flow) Begin(w http.ResponseWriter, p Provider) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	f.setCookie(w, stateCookieName, state, int(flowTTL.Seconds()))
	f.setCookie(w, verifierCookieName, verifier, int(flowTTL.Seconds()))

	return p.AuthCodeURL(state, verifier), nil
}

// Complete checks the callback's state against the cookie, clears both
// cookies and returns the PKCE verifier.
func (f Flow) Complete(w http.ResponseWriter, r *http.Request) (string, error) {
	defer f.Clear(w)

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		return "", &FlowError{Code: CodeDenied, Err: fmt.Errorf("provider returned error: %s", providerErr)}
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	if state == "" || err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return "", &FlowError{Code: CodeStateMismatch, Err: errors.New("oauth state mismatch")}
	}

	verifier, err := r.Cookie(verifierCookieName)
	if err != nil || verifier.Value == "" {
		return "", &FlowError{Code: CodeStateMismatch, Err: errors.New("missing pkce verifier")}
	}

	if r.URL.Query().Get("code") == "" {
		return "", &FlowError{Code: CodeExchangeFailed, Err: errors.New("missing authorization code")}
	}

	return verifier.Value, nil
}

// Clear expires both flow cookies
func (f Flow) Clear(w http.ResponseWriter) {
	f.setCookie(w, stateCookieName, "", -1)
	f.setCookie(w, verifierCookieName, "", -1)
}

func (f Flow) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     flowCookiePath,
		HttpOnly: true,
		Secure:   f.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
