// Package config loads and validates the gateway configuration from YAML
// with environment-variable overrides, and watches the file for changes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/authgw/internal/audit"
	"github.com/vyrodovalexey/authgw/internal/auth"
	"github.com/vyrodovalexey/authgw/internal/auth/session"
	"github.com/vyrodovalexey/authgw/internal/credential"
	"github.com/vyrodovalexey/authgw/internal/middleware"
)

// Strategy names accepted in the routing table.
const (
	StrategyServiceCredential = "serviceCredential"
	StrategyAPIKey            = "apiKey"
	StrategySession           = "session"
)

// Credential store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreVault  = "vault"
)

// Config is the root gateway configuration. It is loaded once at startup;
// runtime changes arrive through the Watcher, which rebuilds and swaps
// whole components instead of mutating this struct.
type Config struct {
	Server    ServerConfig               `yaml:"server" json:"server"`
	Logging   LoggingConfig              `yaml:"logging" json:"logging"`
	Audit     audit.Config               `yaml:"audit" json:"audit"`
	Auth      AuthConfig                 `yaml:"auth" json:"auth"`
	ClientIP  ClientIPConfig             `yaml:"clientIp" json:"clientIp"`
	Store     StoreConfig                `yaml:"store" json:"store"`
	RateLimit middleware.RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     time.Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// RouteConfig binds a URL prefix to a strategy name.
type RouteConfig struct {
	Prefix   string `yaml:"prefix" json:"prefix"`
	Strategy string `yaml:"strategy" json:"strategy"`
}

// AuthConfig configures the routing table and the strategies.
type AuthConfig struct {
	Routes  []RouteConfig                `yaml:"routes" json:"routes"`
	Service auth.ServiceCredentialConfig `yaml:"service,omitempty" json:"service,omitempty"`
	APIKey  auth.APIKeyConfig            `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	Session session.Config               `yaml:"session,omitempty" json:"session,omitempty"`
}

// ClientIPConfig configures trusted-proxy resolution.
type ClientIPConfig struct {
	// TrustedProxies lists CIDRs (or single IPs) whose proxy headers are
	// honored. Empty means only the transport peer address is used.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
}

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	Type    string                   `yaml:"type" json:"type"`
	Records []*credential.Record     `yaml:"records,omitempty" json:"records,omitempty"`
	Redis   credential.RedisConfig   `yaml:"redis,omitempty" json:"redis,omitempty"`
	Vault   credential.VaultConfig   `yaml:"vault,omitempty" json:"vault,omitempty"`
	Breaker credential.BreakerConfig `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Audit: *audit.DefaultConfig(),
		Auth: AuthConfig{
			Routes: []RouteConfig{
				{Prefix: "/serviceAuth/", Strategy: StrategyServiceCredential},
				{Prefix: "/client/", Strategy: StrategyAPIKey},
				{Prefix: "/postLogin/", Strategy: StrategySession},
			},
		},
		Store: StoreConfig{
			Type: StoreMemory,
		},
	}
}

// Load reads the configuration file, applies defaults and GATEWAY_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path from flags is trusted
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies GATEWAY_* environment variables on top of the
// file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GATEWAY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GATEWAY_AUDIT_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Audit.Enabled = enabled
		}
	}
	if v := os.Getenv("GATEWAY_AUDIT_MINIMUM_LEVEL"); v != "" {
		c.Audit.MinimumLevel = v
	}
	if v := os.Getenv("GATEWAY_STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("GATEWAY_REDIS_ADDRESS"); v != "" {
		c.Store.Redis.Address = v
	}
	if v := os.Getenv("GATEWAY_REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("GATEWAY_VAULT_ADDRESS"); v != "" {
		c.Store.Vault.Address = v
	}
	if v := os.Getenv("GATEWAY_VAULT_TOKEN"); v != "" {
		c.Store.Vault.Token = v
	}
	if v := os.Getenv("GATEWAY_SESSION_HMAC_SECRET"); v != "" {
		c.Auth.Session.HMACSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Audit.Validate(); err != nil {
		return err
	}

	if len(c.Auth.Routes) == 0 {
		return fmt.Errorf("at least one auth route is required")
	}
	needsSession := false
	for i, route := range c.Auth.Routes {
		if route.Prefix == "" {
			return fmt.Errorf("auth route %d: prefix is required", i)
		}
		switch route.Strategy {
		case StrategyServiceCredential, StrategyAPIKey:
		case StrategySession:
			needsSession = true
		default:
			return fmt.Errorf("auth route %d: unknown strategy %q", i, route.Strategy)
		}
	}
	if needsSession {
		if err := c.Auth.Session.Validate(); err != nil {
			return err
		}
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("redis store requires an address")
		}
	case StoreVault:
		if c.Store.Vault.Address == "" {
			return fmt.Errorf("vault store requires an address")
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limiting requires a positive rps")
	}

	return nil
}
