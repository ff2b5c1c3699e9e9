package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const githubAPIURL = "https://api.github.com"

// GitHub signs users in with GitHub and reads identity from the REST API
type GitHub struct {
	config *oauth2.Config
	apiURL string
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHub creates the GitHub provider
func NewGitHub(creds Credentials) *GitHub {
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	return &GitHub{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoints.GitHub,
		},
		apiURL: githubAPIURL,
	}
}

// Name returns the provider identifier
func (g *GitHub) Name() models.Provider {
	return models.ProviderGitHub
}

// AuthCodeURL builds the consent URL with PKCE parameters
func (g *GitHub) AuthCodeURL(state, verifier string) string {
	return g.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades code for an access token and loads the user's profile.
// When the profile email is private the primary verified address is used.
func (g *GitHub) Exchange(ctx context.Context, code, verifier string) (*identity.ProviderCallback, error) {
	token, err := g.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &FlowError{Code: CodeExchangeFailed, Err: fmt.Errorf("github token exchange failed: %w", err)}
	}
	client := g.config.Client(ctx, token)

	var user githubUser
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, &FlowError{Code: CodeExchangeFailed, Err: err}
	}
	if user.ID == 0 {
		return nil, &FlowError{Code: CodeExchangeFailed, Err: fmt.Errorf("github profile missing id")}
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return nil, &FlowError{Code: CodeExchangeFailed, Err: err}
		}
		email = pickGitHubEmail(emails)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &identity.ProviderCallback{
		Provider:    models.ProviderGitHub,
		ProviderID:  strconv.FormatInt(user.ID, 10),
		Email:       email,
		DisplayName: name,
		AvatarURL:   user.AvatarURL,
	}, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s request failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github %s: %w", path, err)
	}
	return nil
}

// pickGitHubEmail prefers the primary verified address, then any verified one
func pickGitHubEmail(emails []githubEmail) string {
	var fallback string
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback
}
