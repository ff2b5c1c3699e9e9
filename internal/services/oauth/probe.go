package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
)

// Prober checks that a provider's public endpoints are reachable
type Prober struct {
	jwks          *JWKSManager
	httpClient    *http.Client
	googleJWKSURL string
	githubAPIURL  string
}

// NewProber creates a prober against the real provider endpoints
func NewProber(httpClient *http.Client) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Prober{
		jwks:          NewJWKSManager(httpClient),
		httpClient:    httpClient,
		googleJWKSURL: googleJWKSURL,
		githubAPIURL:  githubAPIURL,
	}
}

// Probe returns a short description of what was checked
func (p *Prober) Probe(ctx context.Context, name models.Provider) (string, error) {
	switch name {
	case models.ProviderGoogle:
		keys, err := p.jwks.Refresh(ctx, p.googleJWKSURL)
		if err != nil {
			return "", err
		}
		if keys.Len() == 0 {
			return "", fmt.Errorf("google JWKS at %s has no signing keys", p.googleJWKSURL)
		}
		return fmt.Sprintf("fetched %d signing keys from %s", keys.Len(), p.googleJWKSURL), nil
	case models.ProviderGitHub:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.githubAPIURL+"/meta", nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to reach github api: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("github api returned status %d", resp.StatusCode)
		}
		return "github api is reachable at " + p.githubAPIURL, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unsupported provider: %s", name))
	}
}
