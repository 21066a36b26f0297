package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Device   DeviceConfig
	Rollout  RolloutConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/aclpush.db"`
}

// DeviceConfig holds device transport configuration.
type DeviceConfig struct {
	SSHPort int `env:"DEVICE_SSH_PORT" envDefault:"22"`
	// FileShim points at a directory of per-device config files used instead
	// of real SSH sessions, for testing without devices.
	FileShim string `env:"DEVICE_FILE_SHIM"`
}

// RolloutConfig holds rollout behavior configuration.
type RolloutConfig struct {
	// Fanout bounds how many devices one run touches concurrently.
	Fanout int `env:"ROLLOUT_FANOUT" envDefault:"4"`
	// OpTimeout bounds each blocking device operation.
	OpTimeout time.Duration `env:"ROLLOUT_OP_TIMEOUT" envDefault:"30s"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	// BootstrapAPIKey grants admin access before any key exists in the store.
	BootstrapAPIKey string `env:"BOOTSTRAP_API_KEY"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Device); err != nil {
		return nil, fmt.Errorf("parsing device config: %w", err)
	}
	if err := env.Parse(&cfg.Rollout); err != nil {
		return nil, fmt.Errorf("parsing rollout config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Rollout.Fanout < 1 {
		return fmt.Errorf("ROLLOUT_FANOUT must be at least 1")
	}
	if c.Rollout.OpTimeout < 0 {
		return fmt.Errorf("ROLLOUT_OP_TIMEOUT must not be negative")
	}
	if c.Device.SSHPort < 1 || c.Device.SSHPort > 65535 {
		return fmt.Errorf("DEVICE_SSH_PORT must be a valid port")
	}
	return nil
}

// UseFileShim returns true if the file shim should be used instead of real
// SSH sessions.
func (c *Config) UseFileShim() bool {
	return c.Device.FileShim != ""
}
