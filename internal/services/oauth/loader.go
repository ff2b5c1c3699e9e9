package oauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"go.uber.org/zap"
)

// ConfigSource lists provider credentials kept in the database
type ConfigSource interface {
	GetAll(ctx context.Context) ([]*models.ProviderConfig, error)
}

// ClientSettings are client id and secret as read from the environment
type ClientSettings struct {
	ClientID     string
	ClientSecret string
}

// CallbackURL returns the redirect URL registered with provider
func CallbackURL(baseURL string, provider models.Provider) string {
	return strings.TrimRight(baseURL, "/") + "/api/auth/" + string(provider) + "/callback"
}

// LoadRegistry builds the registry of enabled providers once at startup.
// Environment credentials take precedence over stored ones. A provider with
// only one of client id and secret set is a configuration error; a provider
// with neither is disabled.
func LoadRegistry(ctx context.Context, baseURL string, env map[models.Provider]ClientSettings, source ConfigSource, jwks *JWKSManager, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	stored := map[models.Provider]*models.ProviderConfig{}
	if source != nil {
		configs, err := source.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider configs: %w", err)
		}
		for _, c := range configs {
			stored[c.Provider] = c
		}
	}

	var providers []Provider
	for _, name := range models.SupportedProviders {
		creds, ok, err := resolveCredentials(name, env[name], stored[name])
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Info("oauth_provider_disabled", zap.String("provider", string(name)))
			continue
		}
		creds.RedirectURL = CallbackURL(baseURL, name)

		switch name {
		case models.ProviderGoogle:
			providers = append(providers, NewGoogle(creds, jwks))
		case models.ProviderGitHub:
			providers = append(providers, NewGitHub(creds))
		}
		log.Info("oauth_provider_enabled",
			zap.String("provider", string(name)),
			zap.String("redirect_url", creds.RedirectURL),
		)
	}

	return NewRegistry(providers...), nil
}

func resolveCredentials(name models.Provider, env ClientSettings, stored *models.ProviderConfig) (Credentials, bool, error) {
	id, secret := strings.TrimSpace(env.ClientID), strings.TrimSpace(env.ClientSecret)
	switch {
	case id != "" && secret != "":
		return Credentials{ClientID: id, ClientSecret: secret}, true, nil
	case id != "" || secret != "":
		upper := strings.ToUpper(string(name))
		return Credentials{}, false, apperrors.Configuration(
			fmt.Sprintf("%s_CLIENT_ID and %s_CLIENT_SECRET must be set together", upper, upper))
	}

	if stored == nil || !stored.Enabled {
		return Credentials{}, false, nil
	}
	if stored.ClientID == "" || stored.ClientSecret == "" {
		return Credentials{}, false, apperrors.Configuration(
			fmt.Sprintf("stored %s provider config is missing client credentials", name))
	}
	return Credentials{ClientID: stored.ClientID, ClientSecret: stored.ClientSecret, Scopes: stored.Scopes}, true, nil
}
