package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	ServiceAPIKeyHash  string
	CORSAllowedOrigins []string
	RefdataPath        string
	DBMigrateOnStart   bool

	QuoteDefaultValidityDays  int
	QuoteResultCacheTTL       time.Duration
	QuoteLockTTL              time.Duration
	IdempotencyTTL            time.Duration
	RateLimitPerMinute        int
	LowMarginThresholdPercent float64
	WorkerConcurrency         int

	Obs Observability
}

// Observability groups the OBS_* keys.
type Observability struct {
	LogFormat       string
	LogLevel        string
	MetricsEnabled  bool
	Namespace       string
	TracingEnabled  bool
	OTLPEndpoint    string
	TracingExporter string
	SamplingRatio   float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "atoll-quote"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "atoll-consultants"),
		ServiceAPIKeyHash:  strings.TrimSpace(k.String("SERVICE_API_KEY_HASH")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RefdataPath:        strings.TrimSpace(k.String("REFDATA_PATH")),
		DBMigrateOnStart:   parseBoolDefault(k.String("DB_MIGRATE_ON_START"), true),

		QuoteDefaultValidityDays:  parseInt(k.String("QUOTE_DEFAULT_VALIDITY_DAYS"), 14),
		QuoteResultCacheTTL:       parseDuration(k.String("QUOTE_RESULT_CACHE_TTL"), "5m"),
		QuoteLockTTL:              parseDuration(k.String("QUOTE_LOCK_TTL"), "30s"),
		IdempotencyTTL:            parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitPerMinute:        parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		LowMarginThresholdPercent: parseFloat(k.String("LOW_MARGIN_THRESHOLD_PERCENT"), 5),
		WorkerConcurrency:         parseInt(k.String("WORKER_CONCURRENCY"), 5),

		Obs: Observability{
			LogFormat:       valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:        valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:  parseBoolDefault(k.String("OBS_ENABLE_METRICS"), true),
			Namespace:       valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "atoll"),
			TracingEnabled:  parseBool(k.String("OBS_ENABLE_TRACING")),
			OTLPEndpoint:    strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingExporter: valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlphttp"),
			SamplingRatio:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 0.1),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.RefdataPath == "" {
		return nil, errors.New("REFDATA_PATH is required")
	}
	if cfg.QuoteDefaultValidityDays < 1 || cfg.QuoteDefaultValidityDays > 90 {
		return nil, fmt.Errorf("QUOTE_DEFAULT_VALIDITY_DAYS must be between 1 and 90, got %d", cfg.QuoteDefaultValidityDays)
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 5
	}
	if cfg.RateLimitPerMinute < 0 {
		cfg.RateLimitPerMinute = 0
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
