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
	CORSAllowedOrigins []string

	// MoneyMotion credentials. The API key may be absent at startup: the
	// session requester then answers every deposit with a configuration
	// error while health endpoints keep serving.
	MoneyMotionAPIKey        string
	MoneyMotionWebhookSecret string
	MoneyMotionBaseURL       string

	PaymentSuccessURL string
	PaymentCancelURL  string
	CurrencyCode      string
	MinDepositAmount  float64

	ProviderTimeout        time.Duration
	WebhookFreshnessWindow time.Duration
	WebhookReplayTTL       time.Duration
	IdempotencyTTL         time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
	MaxBodyBytes    int64

	LogLevel  string
	LogFormat string

	TracingEnabled     bool
	OTLPEndpoint       string
	TraceSamplingRatio float64
	MetricsBucketsCSV  string
	PprofToken         string
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
		Port:               valueOrDefault(k.String("PORT"), "3000"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		MoneyMotionAPIKey:        strings.TrimSpace(k.String("MONEYMOTION_API_KEY")),
		MoneyMotionWebhookSecret: strings.TrimSpace(k.String("MONEYMOTION_WEBHOOK_SECRET")),
		MoneyMotionBaseURL:       valueOrDefault(k.String("MONEYMOTION_BASE_URL"), "https://api.moneymotion.io"),

		PaymentSuccessURL: valueOrDefault(k.String("PAYMENT_SUCCESS_URL"), "https://your-website-url.com/payment-success"),
		PaymentCancelURL:  valueOrDefault(k.String("PAYMENT_CANCEL_URL"), "https://your-website-url.com/payment-cancelled"),
		CurrencyCode:      strings.ToLower(valueOrDefault(k.String("CURRENCY_CODE"), "usd")),
		MinDepositAmount:  parseFloat(k.String("MIN_DEPOSIT_AMOUNT"), 1.00),

		ProviderTimeout:        parseDuration(k.String("PROVIDER_TIMEOUT"), "10s"),
		WebhookFreshnessWindow: parseDuration(k.String("WEBHOOK_FRESHNESS_WINDOW"), "5m"),
		WebhookReplayTTL:       parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:         parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 30),
		MaxBodyBytes:    int64(parseInt(k.String("MAX_BODY_BYTES"), 64<<10)),

		LogLevel:  valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat: valueOrDefault(k.String("LOG_FORMAT"), "json"),

		TracingEnabled:     strings.EqualFold(k.String("TRACING_ENABLED"), "true"),
		OTLPEndpoint:       k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSamplingRatio: parseFloat(k.String("TRACE_SAMPLING_RATIO"), 1.0),
		MetricsBucketsCSV:  k.String("METRICS_BUCKETS_MS"),
		PprofToken:         strings.TrimSpace(k.String("PPROF_TOKEN")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
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
		return value
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
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return parsed
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
