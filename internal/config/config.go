package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
)

// Credential store backends
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config holds application configuration
type Config struct {
	DatabaseURL        string
	ServerPort         string
	BaseURL            string
	FrontendURL        string
	EnableHSTS         bool
	CookieSecure       bool
	TrustProxy         bool
	CredentialStore    string
	MongoURL           string
	MongoDatabase      string
	RedisURL           string
	RabbitMQURL        string
	RabbitMQPrefetch   int
	JWTSecret          string
	TokenTTL           time.Duration
	BcryptCost         int
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	SMTP               SMTP
	WorkerDebugMode    bool
	ServerDebugMode    bool
	LogFormat          string
	OTELEnabled        bool
	OTELEndpoint       string
}

// SMTP holds outgoing notification mail settings
type SMTP struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Pass     string
	From     string
	NotifyTo string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom loads API server configuration through getenv
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := read(env(getenv))

	if cfg.DatabaseURL == "" {
		return nil, apperrors.Configuration("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, apperrors.Configuration("JWT_SECRET is required")
	}
	if cfg.RabbitMQURL == "" {
		return nil, apperrors.Configuration("RABBITMQ_URL is required for notifications")
	}
	switch cfg.CredentialStore {
	case StorePostgres:
	case StoreMongo:
		if cfg.MongoURL == "" {
			return nil, apperrors.Configuration("MONGO_URL is required when CREDENTIAL_STORE=mongo")
		}
	default:
		return nil, apperrors.Configuration("CREDENTIAL_STORE must be postgres or mongo")
	}
	if cfg.TokenTTL <= 0 {
		return nil, apperrors.Configuration("TOKEN_TTL must be a positive duration")
	}

	return cfg, nil
}

// LoadWorker loads the notification worker configuration
func LoadWorker() (*Config, error) {
	return LoadWorkerFrom(os.Getenv)
}

// LoadWorkerFrom only requires the broker URL
func LoadWorkerFrom(getenv func(string) string) (*Config, error) {
	cfg := read(env(getenv))
	if cfg.RabbitMQURL == "" {
		return nil, apperrors.Configuration("RABBITMQ_URL is required")
	}
	if cfg.RabbitMQPrefetch <= 0 {
		cfg.RabbitMQPrefetch = 1
	}
	return cfg, nil
}

// LoadDatabase loads configuration for tools that only talk to Postgres
func LoadDatabase() (*Config, error) {
	return LoadDatabaseFrom(os.Getenv)
}

// LoadDatabaseFrom only requires DATABASE_URL
func LoadDatabaseFrom(getenv func(string) string) (*Config, error) {
	cfg := read(env(getenv))
	if cfg.DatabaseURL == "" {
		return nil, apperrors.Configuration("DATABASE_URL is required")
	}
	return cfg, nil
}

func read(e env) *Config {
	return &Config{
		DatabaseURL:        e.get("DATABASE_URL", ""),
		ServerPort:         e.get("SERVER_PORT", "5000"),
		BaseURL:            strings.TrimRight(e.get("BASE_URL", "http://localhost:5000"), "/"),
		FrontendURL:        strings.TrimRight(e.get("FRONTEND_URL", "http://localhost:3000"), "/"),
		EnableHSTS:         e.getBool("ENABLE_HSTS", false),
		CookieSecure:       e.getBool("COOKIE_SECURE", false),
		TrustProxy:         e.getBool("TRUST_PROXY", false),
		CredentialStore:    strings.ToLower(e.get("CREDENTIAL_STORE", StorePostgres)),
		MongoURL:           e.get("MONGO_URL", ""),
		MongoDatabase:      e.get("MONGO_DATABASE", "drivenova"),
		RedisURL:           e.get("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:        e.get("RABBITMQ_URL", ""),
		RabbitMQPrefetch:   e.getInt("RABBITMQ_PREFETCH", 1),
		JWTSecret:          e.get("JWT_SECRET", ""),
		TokenTTL:           e.getDuration("TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:         e.getInt("BCRYPT_COST", 0),
		GoogleClientID:     e.get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: e.get("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:     e.get("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: e.get("GITHUB_CLIENT_SECRET", ""),
		SMTP: SMTP{
			Host:     e.get("EMAIL_SMTP_HOST", ""),
			Port:     e.getInt("EMAIL_SMTP_PORT", 587),
			Secure:   e.getBool("EMAIL_SMTP_SECURE", false),
			User:     e.get("EMAIL_SMTP_USER", ""),
			Pass:     e.get("EMAIL_SMTP_PASS", ""),
			From:     e.get("EMAIL_FROM_ADDRESS", ""),
			NotifyTo: e.get("NOTIFY_EMAIL", ""),
		},
		WorkerDebugMode: e.getBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode: e.getBool("SERVER_DEBUG_MODE", false),
		LogFormat:       strings.ToLower(e.get("LOG_FORMAT", "json")),
		OTELEnabled:     e.getBool("OTEL_ENABLED", false),
		OTELEndpoint:    e.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

type env func(string) string

func (e env) get(key, defaultValue string) string {
	if value := strings.TrimSpace(e(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e env) getInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDuration accepts time.ParseDuration syntax plus a whole-day "Nd" form.
// Unparseable values yield zero so Load can reject them.
func (e env) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(e(key))
	if value == "" {
		return defaultValue
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0
		}
		return time.Duration(n) * 24 * time.Hour
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
