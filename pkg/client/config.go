package client

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// DefaultBaseURL is the public SumAPI endpoint.
const DefaultBaseURL = "http://api.summarify.io"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the client configuration.
type Config struct {
	// BaseURL of the service, without trailing path.
	BaseURL string `validate:"required,url"`

	// Credentials used for the initial token and every refresh.
	Credentials Credentials

	// UserAgent header, optional.
	UserAgent string

	// Timeout per HTTP call. Inference on large packets is slow.
	Timeout time.Duration `validate:"gt=0"`

	// Retry
	MaxGatewayRetries int           `validate:"gte=0"`
	MaxAuthRetries    int           `validate:"gte=0"`
	GatewayBackoff    time.Duration `validate:"gte=0"`

	// Pacing, zero means unlimited
	RateLimit float64 `validate:"gte=0"` // Requests per second
	RateBurst int     `validate:"gte=0"`

	// Caching of single item operations, disabled when Redis is nil
	Redis    *redis.Client `validate:"-"`
	CacheTTL time.Duration `validate:"gte=0"`

	// Tracing wraps the transport with OpenTelemetry instrumentation.
	Tracing bool
}

// DefaultConfig returns the configuration matching the service contract.
func DefaultConfig(creds Credentials) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Credentials:       creds,
		Timeout:           3600 * time.Second,
		MaxGatewayRetries: 1,
		MaxAuthRetries:    1,
		GatewayBackoff:    600 * time.Second,
		RateBurst:         1,
		CacheTTL:          24 * time.Hour,
	}
}

// Validate checks cfg and returns the first violations found.
func (cfg Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RetryPolicy derives the per request retry bounds from cfg.
func (cfg Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxGatewayRetries: cfg.MaxGatewayRetries,
		MaxAuthRetries:    cfg.MaxAuthRetries,
		Backoff:           cfg.GatewayBackoff,
	}
}

// LoadConfig builds a Config from the environment. A .env file in the
// working directory is loaded first when present.
//
//	SUMAPI_USERNAME, SUMAPI_PASSWORD   credentials (required)
//	SUMAPI_BASE_URL                    service URL
//	SUMAPI_USER_AGENT                  User-Agent header
//	SUMAPI_TIMEOUT                     per call timeout, e.g. "1h"
//	SUMAPI_GATEWAY_BACKOFF             wait before a gateway retry, e.g. "10m"
//	SUMAPI_RATE_LIMIT                  requests per second
//	SUMAPI_REDIS_ADDR                  enables the response cache
//	SUMAPI_CACHE_TTL                   cache entry lifetime
//	SUMAPI_TRACING                     "true" enables otel transport
func LoadConfig() (Config, error) {
	_ = godotenv.Load() // no error if .env doesn't exist

	cfg := DefaultConfig(Credentials{
		Username: os.Getenv("SUMAPI_USERNAME"),
		Password: os.Getenv("SUMAPI_PASSWORD"),
	})

	if v := os.Getenv("SUMAPI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.UserAgent = os.Getenv("SUMAPI_USER_AGENT")

	var err error
	if cfg.Timeout, err = durationEnv("SUMAPI_TIMEOUT", cfg.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.GatewayBackoff, err = durationEnv("SUMAPI_GATEWAY_BACKOFF", cfg.GatewayBackoff); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = durationEnv("SUMAPI_CACHE_TTL", cfg.CacheTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("SUMAPI_RATE_LIMIT"); v != "" {
		if cfg.RateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("parse SUMAPI_RATE_LIMIT: %w", err)
		}
	}

	if v := os.Getenv("SUMAPI_TRACING"); v != "" {
		if cfg.Tracing, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("parse SUMAPI_TRACING: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if addr := os.Getenv("SUMAPI_REDIS_ADDR"); addr != "" {
		cfg.Redis = redis.NewClient(&redis.Options{Addr: addr})
	}
	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
