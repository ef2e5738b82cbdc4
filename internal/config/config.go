package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string `mapstructure:"HTTP_PORT"`
	Env                 string `mapstructure:"ENV"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`
	MaxBodyBytes        int64  `mapstructure:"MAX_BODY_BYTES"`
	DefaultMovingWindow int    `mapstructure:"DEFAULT_MOVING_WINDOW"`
	SandboxEnabled      bool   `mapstructure:"SANDBOX_ENABLED"`
	SandboxUsers        int    `mapstructure:"SANDBOX_USERS"`
	SandboxDays         int    `mapstructure:"SANDBOX_DAYS"`
	SandboxSeed         int64  `mapstructure:"SANDBOX_SEED"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("HTTP_PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_BODY_BYTES", 16<<20)
	v.SetDefault("DEFAULT_MOVING_WINDOW", 7)
	v.SetDefault("SANDBOX_ENABLED", false)
	v.SetDefault("SANDBOX_USERS", 3)
	v.SetDefault("SANDBOX_DAYS", 30)
	v.SetDefault("SANDBOX_SEED", 1)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("HTTP_PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("MAX_BODY_BYTES")
	v.BindEnv("DEFAULT_MOVING_WINDOW")
	v.BindEnv("SANDBOX_ENABLED")
	v.BindEnv("SANDBOX_USERS")
	v.BindEnv("SANDBOX_DAYS")
	v.BindEnv("SANDBOX_SEED")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads and validates the configuration, exiting on failure.
func MustLoad(logger zerolog.Logger) *Config {
	cfg, err := Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	return cfg
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("HTTP_PORT must not be empty")
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if c.DefaultMovingWindow < 1 {
		return fmt.Errorf("DEFAULT_MOVING_WINDOW must be at least 1, got %d", c.DefaultMovingWindow)
	}
	if c.SandboxEnabled {
		if c.SandboxUsers < 1 {
			return fmt.Errorf("SANDBOX_USERS must be at least 1, got %d", c.SandboxUsers)
		}
		if c.SandboxDays < 1 {
			return fmt.Errorf("SANDBOX_DAYS must be at least 1, got %d", c.SandboxDays)
		}
	}
	return nil
}
