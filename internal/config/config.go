// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/playerhub/internal/model"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config is the server configuration
type Config struct {
	Host string `env:"PLAYERHUB_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PLAYERHUB_PORT" envDefault:"8080"`

	StorageType string `env:"PLAYERHUB_STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"PLAYERHUB_REDIS_URL"`
	PostgresURL string `env:"PLAYERHUB_POSTGRES_URL"`

	EconomyConfigPath string        `env:"PLAYERHUB_ECONOMY_CONFIG_PATH"`
	SessionDuration   time.Duration `env:"PLAYERHUB_SESSION_DURATION" envDefault:"720h"`
	LogLevel          string        `env:"PLAYERHUB_LOG_LEVEL" envDefault:"info"`

	// Provider access tokens are HS256 JWTs signed with a per-kind shared secret
	ProviderIssuer        string `env:"PLAYERHUB_PROVIDER_ISSUER"`
	PlatformAccountSecret string `env:"PLAYERHUB_PROVIDER_PLATFORM_ACCOUNT_SECRET"`
	SocialSecret          string `env:"PLAYERHUB_PROVIDER_SOCIAL_SECRET"`
	ConsoleStoreSecret    string `env:"PLAYERHUB_PROVIDER_CONSOLE_STORE_SECRET"`

	// Requests per second and burst per client on the auth routes; zero disables limiting
	AuthRateLimit float64 `env:"PLAYERHUB_AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateBurst int     `env:"PLAYERHUB_AUTH_RATE_BURST" envDefault:"10"`
	// Key rate limits on X-Forwarded-For; only set behind a proxy that overwrites it
	TrustProxyHeaders bool `env:"PLAYERHUB_TRUST_PROXY_HEADERS" envDefault:"false"`
}

// Load parses the configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for missing or inconsistent settings
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("PLAYERHUB_REDIS_URL is required when PLAYERHUB_STORAGE_TYPE=redis")
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("PLAYERHUB_POSTGRES_URL is required when PLAYERHUB_STORAGE_TYPE=postgres")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("session duration must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel parses LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// ProviderSecrets returns the configured signing secret for each durable provider kind.
// Kinds without a secret are omitted.
func (c *Config) ProviderSecrets() map[model.ProviderKind][]byte {
	secrets := map[model.ProviderKind][]byte{}
	for kind, secret := range map[model.ProviderKind]string{
		model.ProviderPlatformAccount: c.PlatformAccountSecret,
		model.ProviderSocial:          c.SocialSecret,
		model.ProviderConsoleStore:    c.ConsoleStoreSecret,
	} {
		if secret != "" {
			secrets[kind] = []byte(secret)
		}
	}
	return secrets
}
