package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	defaultRatelimitRate = "5-S"
	ratelimitKeyPrefix   = "drivenova_ratelimit"
	rateLimitedMessage   = "Too many requests, please try again later"
)

// RatelimitStore reads and seeds the persisted rate
type RatelimitStore interface {
	Get(ctx context.Context) (*models.RatePolicy, error)
	Set(ctx context.Context, p *models.RatePolicy) error
}

// NewLimiterStore returns a Redis-backed limiter store, or an in-process one
// when redisClient is nil or Redis cannot be reached.
func NewLimiterStore(redisClient *redis.Client, log *zap.Logger) limiter.Store {
	opts := limiter.StoreOptions{Prefix: ratelimitKeyPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval}
	if redisClient != nil {
		store, err := redisstore.NewStoreWithOptions(redisClient, opts)
		if err == nil {
			return store
		}
		log.Warn("rate_limiter_redis_unavailable_using_memory", zap.Error(err))
	}
	return memorystore.NewStoreWithOptions(opts)
}

type activeLimit struct {
	rate string
	mw   *stdlibmw.Middleware
}

// RateLimitReloader limits requests per client IP at a rate that is
// re-read from RatelimitStore on an interval.
type RateLimitReloader struct {
	store       limiter.Store
	repo        RatelimitStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	trustProxy  bool
	active      atomic.Pointer[activeLimit]
}

// NewRateLimitReloader loads the initial rate synchronously. Clients are
// keyed on RemoteAddr unless trustProxy allows forwarding headers.
func NewRateLimitReloader(ctx context.Context, store limiter.Store, repo RatelimitStore, defaultRate string, trustProxy bool, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = defaultRatelimitRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
		trustProxy:  trustProxy,
	}
	r.load(ctx)
	return r
}

// Middleware may wrap any number of routes; all share one counter per client IP
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if a := r.active.Load(); a != nil {
				a.mw.Handler(next).ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// Rate returns the rate currently enforced, e.g. "5-S"
func (r *RateLimitReloader) Rate() string {
	if a := r.active.Load(); a != nil {
		return a.rate
	}
	return ""
}

// Start reloads every interval until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
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

func (r *RateLimitReloader) load(ctx context.Context) {
	raw := r.storedRate(ctx)
	rate, err := limiter.NewRateFromFormatted(raw)
	if err != nil {
		r.log.Error("rate_limit_invalid_using_default", zap.Error(err), zap.String("rate", raw))
		raw = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(raw); err != nil {
			r.log.Error("rate_limit_default_invalid", zap.Error(err), zap.String("rate", raw))
			return
		}
	}

	if a := r.active.Load(); a != nil && a.rate == raw {
		return
	}
	r.active.Store(&activeLimit{rate: raw, mw: r.newMiddleware(rate)})
	r.log.Info("rate_limit_loaded", zap.String("rate", raw))
}

// storedRate returns the persisted rate. A missing row is seeded with the
// default so operators can see it from the CLI.
func (r *RateLimitReloader) storedRate(ctx context.Context) string {
	p, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("rate_limit_load_failed_using_default", zap.Error(err), zap.String("default_rate", r.defaultRate))
	case p != nil && p.Rate != "":
		return p.Rate
	default:
		if err := r.repo.Set(ctx, &models.RatePolicy{Rate: r.defaultRate}); err != nil {
			r.log.Error("rate_limit_seed_failed", zap.Error(err), zap.String("default_rate", r.defaultRate))
		}
	}
	return r.defaultRate
}

func (r *RateLimitReloader) newMiddleware(rate limiter.Rate) *stdlibmw.Middleware {
	return stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIPFunc(r.trustProxy)),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, rateLimitedMessage, r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			r.log.Error("rate_limiter_store_error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, genericErrorMessage, r.log)
		}),
	)
}
