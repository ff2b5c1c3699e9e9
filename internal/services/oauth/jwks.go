package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	jwksTTL          = time.Hour
	maxJWKSBodyBytes = 1 << 20
)

type cachedKeys struct {
	set       jwk.Set
	fetchedAt time.Time
}

// JWKSManager caches provider signing keys per URL. Concurrent misses for
// the same URL share one fetch.
type JWKSManager struct {
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedKeys
	group singleflight.Group
}

func NewJWKSManager(httpClient *http.Client) *JWKSManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSManager{
		httpClient: httpClient,
		ttl:        jwksTTL,
		now:        time.Now,
		cache:      make(map[string]cachedKeys),
	}
}

// GetJWKS returns the key set at jwksURL, from cache while it is fresh
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	cached, ok := m.cache[jwksURL]
	m.mu.RUnlock()
	if ok && m.now().Sub(cached.fetchedAt) < m.ttl {
		return cached.set, nil
	}
	return m.Refresh(ctx, jwksURL)
}

// Refresh fetches jwksURL and replaces the cached set. The verifier calls it
// when a token names a key id the cached set does not have.
func (m *JWKSManager) Refresh(ctx context.Context, jwksURL string) (jwk.Set, error) {
	v, err, _ := m.group.Do(jwksURL, func() (any, error) {
		set, err := m.fetch(ctx, jwksURL)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[jwksURL] = cachedKeys{set: set, fetchedAt: m.now()}
		m.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return v.(jwk.Set), nil
}

func (m *JWKSManager) fetch(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", jwksURL, resp.StatusCode)
	}
	return jwk.ParseReader(io.LimitReader(resp.Body, maxJWKSBodyBytes))
}
