package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/drivenova/internal/config"
	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/handlers"
	"github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/middleware"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/mongostore"
	"github.com/benvon/drivenova/internal/queue"
	"github.com/benvon/drivenova/internal/services/identity"
	"github.com/benvon/drivenova/internal/services/notify"
	"github.com/benvon/drivenova/internal/services/oauth"
	"github.com/benvon/drivenova/internal/services/token"
	"github.com/benvon/drivenova/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	defaultRate    = "5-S"
	reloadInterval = time.Minute
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(telemetry.ServiceAPI, debugMode, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("credential_store", cfg.CredentialStore),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, telemetry.ServiceAPI, cfg.OTELEndpoint, zapLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	healthChecker := handlers.NewHealthChecker(version).
		Register("database", db.PingContext)

	users, closeStore, storeCheck := openCredentialStore(ctx, cfg, db, zapLogger)
	defer closeStore()
	healthChecker.Register("credential_store", storeCheck)

	redisClient := connectRedis(ctx, cfg.RedisURL, zapLogger)
	var redisCheck handlers.CheckFunc
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		redisCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	healthChecker.Register("redis", redisCheck)

	jobQueue, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")
	healthChecker.Register("rabbitmq", jobQueue.HealthCheck)

	notifier := notify.NewQueueNotifier(jobQueue, zapLogger)

	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		zapLogger.Fatal("failed_to_create_token_issuer", zap.Error(err))
	}
	resolver, err := identity.NewResolver(users, cfg.BcryptCost, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_identity_resolver", zap.Error(err))
	}

	providers, err := oauth.LoadRegistry(ctx, cfg.BaseURL, map[models.Provider]oauth.ClientSettings{
		models.ProviderGoogle: {ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		models.ProviderGitHub: {ClientID: cfg.GitHubClientID, ClientSecret: cfg.GitHubClientSecret},
	}, database.NewProviderConfigRepository(db), oauth.NewJWKSManager(nil), zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_load_oauth_providers", zap.Error(err))
	}

	guard := middleware.NewGuard(issuer, zapLogger)

	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerConfig{
		Resolver:    resolver,
		Users:       users,
		Tokens:      issuer,
		Providers:   providers,
		Flow:        oauth.Flow{Secure: cfg.CookieSecure},
		Guard:       guard,
		Notifier:    notifier,
		FrontendURL: cfg.FrontendURL,
		Logger:      zapLogger,
	})
	carHandler := handlers.NewCarHandler(database.NewCarRepository(db), guard, zapLogger)
	bookingHandler := handlers.NewBookingHandler(database.NewBookingRepository(db), guard, notifier, zapLogger)

	corsReloader := middleware.NewCORSReloader(ctx, database.NewCorsPolicyRepository(db), cfg.FrontendURL, zapLogger, reloadInterval)
	rateLimitReloader := middleware.NewRateLimitReloader(ctx,
		middleware.NewLimiterStore(redisClient, zapLogger),
		database.NewRatePolicyRepository(db),
		defaultRate, cfg.TrustProxy, zapLogger, reloadInterval)
	rateLimitMW := rateLimitReloader.Middleware()

	contactHandler := handlers.NewContactHandler(database.NewContactRepository(db), notifier, rateLimitMW, zapLogger)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(telemetry.ServiceAPI))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.ContentType(zapLogger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger, cfg.TrustProxy))
	r.Use(middleware.Logging(zapLogger, cfg.TrustProxy))

	healthChecker.RegisterRoutes(r)
	handlers.NewOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml")).RegisterRoutes(r)

	api := r.PathPrefix("/api").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.Use(rateLimitMW)
	authHandler.RegisterRoutes(authRouter)

	carHandler.RegisterRoutes(api.PathPrefix("/cars").Subrouter())

	bookingRouter := api.PathPrefix("/bookings").Subrouter()
	bookingRouter.Use(rateLimitMW)
	bookingHandler.RegisterRoutes(bookingRouter)

	contactHandler.RegisterRoutes(api.PathPrefix("/contact").Subrouter())

	// Preflight requests are answered by the CORS middleware
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   35 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	// Let in-flight notification enqueues finish before the queue closes
	notifier.Wait()

	zapLogger.Info("server_exited")
}

// openCredentialStore selects the user store named by CREDENTIAL_STORE
func openCredentialStore(ctx context.Context, cfg *config.Config, db *database.DB, zapLogger *zap.Logger) (identity.CredentialStore, func(), handlers.CheckFunc) {
	if cfg.CredentialStore != config.StoreMongo {
		return database.NewUserRepository(db), func() {}, db.PingContext
	}

	client, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_mongo", zap.Error(err))
	}
	store := client.Users()
	if err := store.EnsureIndexes(ctx); err != nil {
		zapLogger.Fatal("failed_to_create_mongo_indexes", zap.Error(err))
	}
	zapLogger.Info("connected_to_mongo", zap.String("database", cfg.MongoDatabase))

	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			zapLogger.Warn("failed_to_close_mongo_connection", zap.Error(err))
		}
	}
	return store, closeFn, client.HealthCheck
}

// connectRedis returns nil when Redis is not configured or unreachable;
// rate limiting then falls back to an in-process store.
func connectRedis(ctx context.Context, redisURL string, zapLogger *zap.Logger) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		zapLogger.Warn("invalid_redis_url", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zapLogger.Warn("redis_unreachable_using_memory_rate_limiter", zap.Error(err))
		_ = client.Close()
		return nil
	}
	zapLogger.Info("connected_to_redis")
	return client
}
