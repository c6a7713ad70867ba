package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment         string
	Addr                string
	LogLevel            string
	DatabaseURL         string
	MigrationsDir       string
	JWTSecret           string
	SessionTTL          time.Duration
	OIDCIssuerURL       string
	OIDCClientID        string
	OIDCClientSecret    string
	OIDCRedirectURL     string
	StripeAPIKey        string
	StripeWebhookSecret string
	BillingCacheTTL     time.Duration
	BillingRefreshEvery time.Duration
	BillingFetchTimeout time.Duration
	SubscribeURL        string
	OnboardingURL       string
	RateLimitRedisAddr  string
	RateLimitRedisPass  string
	RateLimitRedisDB    int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:         GetString("APP_ENV", "development"),
		Addr:                GetString("API_ADDR", ":4000"),
		LogLevel:            GetString("LOG_LEVEL", "info"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://sequence:sequence@db:5432/sequence?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:           GetString("JWT_SECRET", "supersecuresecret"),
		SessionTTL:          time.Duration(GetInt("SESSION_TTL_HOURS", 72)) * time.Hour,
		OIDCIssuerURL:       GetString("OIDC_ISSUER_URL", ""),
		OIDCClientID:        GetString("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:    GetString("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:     GetString("OIDC_REDIRECT_URL", "http://localhost:4000/auth/oidc/callback"),
		StripeAPIKey:        GetString("STRIPE_API_KEY", ""),
		StripeWebhookSecret: GetString("STRIPE_WEBHOOK_SECRET", ""),
		BillingCacheTTL:     time.Duration(GetInt("BILLING_CACHE_TTL_SECONDS", 30)) * time.Second,
		BillingRefreshEvery: time.Duration(GetInt("BILLING_REFRESH_SECONDS", 300)) * time.Second,
		BillingFetchTimeout: time.Duration(GetInt("BILLING_FETCH_TIMEOUT_SECONDS", 10)) * time.Second,
		SubscribeURL:        GetString("GATE_SUBSCRIBE_URL", "/subscribe"),
		OnboardingURL:       GetString("GATE_ONBOARDING_URL", "/welcome"),
		RateLimitRedisAddr:  GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:  GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:    GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
