package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string `validate:"required"`

	LoyaltyBaseURL         string        `validate:"required,url"`
	HTTPTimeout            time.Duration `validate:"gt=0"`
	GetMaxAttempts         int           `validate:"gte=1,lte=10"`
	RetryBackoff           time.Duration `validate:"gt=0"`
	BreakerMinRequests     int           `validate:"gte=1"`
	BreakerFailureRatio    float64       `validate:"gt=0,lte=1"`
	BreakerOpenFor         time.Duration `validate:"gt=0"`
	RedisURL               string        `validate:"omitempty,url"`
	CatalogCacheTTL        time.Duration `validate:"gte=0"`
	StubPort               string        `validate:"required,numeric"`
	StubRateLimit          string        `validate:"required"`
	StubBodyLimitBytes     int64         `validate:"gt=0"`
	StubCheckoutLimit      int           `validate:"gte=0"`
	StubCheckoutWindow     time.Duration `validate:"gt=0"`
	CORSAllowedOrigins     []string
	LogFormat              string `validate:"oneof=json console text"`
	LogLevel               string `validate:"required"`
	MetricsNamespace       string `validate:"required"`
	MetricsBucketsMS       string
	MetricsAddr            string `validate:"omitempty,hostname_port"`
	TracingEnabled         bool
	TracingExporter        string `validate:"oneof=otlp none"`
	TracingEndpoint        string
	TracingSamplingRatio   float64 `validate:"gte=0,lte=1"`
	ReadinessProbeDisabled bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                 valueOrDefault(k.String("APP_ENV"), "development"),
		LoyaltyBaseURL:         strings.TrimRight(valueOrDefault(k.String("LOYALTY_BASE_URL"), "http://localhost:5000"), "/"),
		HTTPTimeout:            parseDuration(k.String("LOYALTY_HTTP_TIMEOUT"), "10s"),
		GetMaxAttempts:         parseInt(k.String("LOYALTY_GET_MAX_ATTEMPTS"), 1),
		RetryBackoff:           parseDuration(k.String("LOYALTY_RETRY_BACKOFF"), "200ms"),
		BreakerMinRequests:     parseInt(k.String("LOYALTY_BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio:    parseFloat(k.String("LOYALTY_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:         parseDuration(k.String("LOYALTY_BREAKER_OPEN_FOR"), "30s"),
		RedisURL:               strings.TrimSpace(k.String("REDIS_URL")),
		CatalogCacheTTL:        parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		StubPort:               strings.TrimPrefix(valueOrDefault(k.String("STUB_PORT"), "5000"), ":"),
		StubRateLimit:          valueOrDefault(k.String("STUB_RATE_LIMIT"), "50-S"),
		StubBodyLimitBytes:     int64(parseInt(k.String("STUB_BODY_LIMIT_BYTES"), 1<<20)),
		StubCheckoutLimit:      parseInt(k.String("STUB_CHECKOUT_LIMIT"), 0),
		StubCheckoutWindow:     parseDuration(k.String("STUB_CHECKOUT_WINDOW"), "1m"),
		CORSAllowedOrigins:     splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:              strings.ToLower(valueOrDefault(k.String("OBS_LOG_FORMAT"), "json")),
		LogLevel:               valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:       valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "loyalty"),
		MetricsBucketsMS:       strings.TrimSpace(k.String("OBS_HTTP_BUCKETS_MS")),
		MetricsAddr:            strings.TrimSpace(k.String("OBS_METRICS_ADDR")),
		TracingEnabled:         parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingExporter:        strings.ToLower(valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp")),
		TracingEndpoint:        strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		ReadinessProbeDisabled: parseBool(k.String("STUB_READINESS_DISABLED")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// StubAddr returns the address the backend test double should bind to.
func (c *Config) StubAddr() string {
	port := strings.TrimSpace(c.StubPort)
	if port == "" {
		port = "5000"
	}
	return ":" + port
}

// CacheEnabled reports whether the catalog listing should be cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != "" && c.CatalogCacheTTL > 0
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
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
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
