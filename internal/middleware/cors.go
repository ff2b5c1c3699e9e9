package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benvon/drivenova/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// devOrigin is allowed when neither a stored policy nor FRONTEND_URL exists
const devOrigin = "http://localhost:3000"

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "Authorization", RequestIDHeader}
)

// CorsStore reads the persisted CORS policy
type CorsStore interface {
	Get(ctx context.Context) (*models.CorsPolicy, error)
}

// CORSReloader applies a CORS policy that is re-read from CorsStore on an
// interval. Without a stored policy the front-end URL is the only allowed origin.
type CORSReloader struct {
	store    CorsStore
	fallback string
	log      *zap.Logger
	interval time.Duration

	current atomic.Pointer[cors.Cors]
	origins atomic.Pointer[[]string]
}

// NewCORSReloader loads the initial policy synchronously
func NewCORSReloader(ctx context.Context, store CorsStore, frontendURL string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	r := &CORSReloader{
		store:    store,
		fallback: strings.TrimSpace(frontendURL),
		log:      log,
		interval: reloadInterval,
	}
	r.load(ctx)
	return r
}

func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.current.Load().Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start reloads every interval until ctx is cancelled. A non-positive
// interval disables reloading.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

func (r *CORSReloader) load(ctx context.Context) {
	policy, err := r.store.Get(ctx)
	if err != nil {
		r.log.Warn("cors_policy_load_failed_using_fallback", zap.Error(err))
		policy = nil
	}

	opts := corsOptions(policy, r.fallback)
	if prev := r.origins.Load(); prev == nil || !slices.Equal(*prev, opts.AllowedOrigins) {
		r.log.Info("cors_policy_applied", zap.Strings("origins", opts.AllowedOrigins))
	}
	r.origins.Store(&opts.AllowedOrigins)
	r.current.Store(cors.New(opts))
}

// corsOptions builds rs/cors options from a stored policy, or from the
// front-end fallback when policy is nil.
func corsOptions(policy *models.CorsPolicy, fallback string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   models.SplitOrigins(fallback),
		AllowCredentials: models.DefaultCorsAllowCredentials,
		MaxAge:           models.DefaultCorsMaxAge,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   []string{RequestIDHeader},
	}
	if policy != nil {
		opts.AllowedOrigins = policy.Origins()
		opts.AllowCredentials = policy.AllowCredentials
		opts.MaxAge = policy.MaxAge
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{devOrigin}
	}
	return opts
}
