// Package config maps RIDER_* environment variables onto the client configuration.
//
// The struct is built once at process start and handed to constructors; nothing
// here is global.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends understood by the client.
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds client runtime settings.
type Config struct {
	// Remote API
	APIBaseURL     string        `env:"RIDER_API_BASE_URL"     envDefault:"http://localhost:8080/api/v1"`
	RequestTimeout time.Duration `env:"RIDER_REQUEST_TIMEOUT"  envDefault:"15s"`
	MaxAttempts    int           `env:"RIDER_MAX_ATTEMPTS"     envDefault:"3"`
	RetryBaseDelay time.Duration `env:"RIDER_RETRY_BASE_DELAY" envDefault:"1s"`

	// Client-side throttle; 0 disables it.
	RateLimit float64 `env:"RIDER_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"RIDER_RATE_BURST" envDefault:"1"`

	// Local persistence
	Storage     string `env:"RIDER_STORAGE"      envDefault:"file"`
	StoragePath string `env:"RIDER_STORAGE_PATH"`
	StorageKey  string `env:"RIDER_STORAGE_KEY"`
	StorageNS   string `env:"RIDER_STORAGE_NAMESPACE" envDefault:"default"`
	RedisURL    string `env:"RIDER_REDIS_URL"`
	RedisPrefix string `env:"RIDER_REDIS_PREFIX" envDefault:"bonjoy:"`
	DatabaseURL string `env:"RIDER_DATABASE_URL"`

	Debug bool `env:"RIDER_DEBUG" envDefault:"false"`

	Dev DevAPI `envPrefix:"RIDER_DEV_"`
}

// DevAPI configures the development stub server.
type DevAPI struct {
	Addr       string        `env:"ADDR"        envDefault:":8080"`
	SigningKey string        `env:"SIGNING_KEY" envDefault:"dev-signing-key"`
	OTP        string        `env:"OTP"         envDefault:"1234"`
	TokenTTL   time.Duration `env:"TOKEN_TTL"   envDefault:"24h"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration obtained from an empty environment.
func Default() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	var problems []error
	if c.APIBaseURL == "" {
		problems = append(problems, errors.New("api base url is empty"))
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, errors.New("request timeout must be positive"))
	}
	if c.MaxAttempts < 1 {
		problems = append(problems, errors.New("max attempts must be at least 1"))
	}
	if c.RetryBaseDelay < 0 {
		problems = append(problems, errors.New("retry base delay must not be negative"))
	}
	if c.RateLimit < 0 {
		problems = append(problems, errors.New("rate limit must not be negative"))
	}
	switch c.Storage {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			problems = append(problems, errors.New("redis storage needs RIDER_REDIS_URL"))
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, errors.New("postgres storage needs RIDER_DATABASE_URL"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown storage %q", c.Storage))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %w", errors.Join(problems...))
	}
	return nil
}
