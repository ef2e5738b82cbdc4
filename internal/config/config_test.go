package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("HTTP_PORT")
	os.Unsetenv("ENV")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.MaxBodyBytes != 16<<20 {
		t.Errorf("expected default body limit 16MiB, got %d", cfg.MaxBodyBytes)
	}
	if cfg.DefaultMovingWindow != 7 {
		t.Errorf("expected default moving window 7, got %d", cfg.DefaultMovingWindow)
	}
	if cfg.SandboxEnabled {
		t.Error("sandbox should be off by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("HTTP_PORT", "9090")
	os.Setenv("SANDBOX_ENABLED", "true")
	os.Setenv("SANDBOX_USERS", "5")
	defer func() {
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("SANDBOX_ENABLED")
		os.Unsetenv("SANDBOX_USERS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.SandboxEnabled || cfg.SandboxUsers != 5 {
		t.Errorf("sandbox settings not picked up: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{
		Port:                "8000",
		LogLevel:            "info",
		MaxBodyBytes:        1024,
		DefaultMovingWindow: 7,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }},
		{"zero window", func(c *Config) { c.DefaultMovingWindow = 0 }},
		{"sandbox no users", func(c *Config) { c.SandboxEnabled = true; c.SandboxUsers = 0 }},
		{"sandbox no days", func(c *Config) { c.SandboxEnabled = true; c.SandboxUsers = 1; c.SandboxDays = 0 }},
	}
	for _, tc := range cases {
		c := *valid
		tc.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() || c.IsProduction() {
		t.Error("development env misclassified")
	}
	c.Env = "production"
	if c.IsDev() || !c.IsProduction() {
		t.Error("production env misclassified")
	}
}
