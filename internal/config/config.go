package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries          int
	InitialBackoff      time.Duration
	MaxConcurrency      int
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerCooldown     time.Duration

	// Cache
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	UseSupabase        bool

	// Tokens minted locally when Supabase is not configured
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	// Auth endpoint rate limit (requests per minute per IP)
	AuthRatePerMinute int

	// Dashboard list bounds
	UpcomingPickupsLimit    int
	CollectorPickupsLimit   int
	RecentTransactionsLimit int

	// Dev mode enables the /v1/dev helpers
	DevMode bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		InitialBackoff:      getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency:      getEnvInt("MAX_CONCURRENCY", 50),
		BreakerMinRequests:  getEnvInt("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio: getEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerCooldown:     getEnvDuration("BREAKER_COOLDOWN", 10*time.Second),

		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", "cleanearth-default-dev-secret-change-me"),
		UseSupabase:        getEnv("USE_SUPABASE", "true") == "true",

		JWTAccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),

		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MINUTE", 30),

		UpcomingPickupsLimit:    getEnvInt("UPCOMING_PICKUPS_LIMIT", 3),
		CollectorPickupsLimit:   getEnvInt("COLLECTOR_PICKUPS_LIMIT", 10),
		RecentTransactionsLimit: getEnvInt("RECENT_TRANSACTIONS_LIMIT", 8),

		DevMode: getEnv("DEV_MODE", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
