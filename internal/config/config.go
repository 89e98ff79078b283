// Package config loads the broker's configuration from environment
// variables, with an optional YAML overlay for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the broker's runtime configuration.
type Config struct {
	Addr        string `yaml:"addr"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads configuration from environment variables, then applies an
// optional YAML overlay if configPath is non-empty. Environment variables
// establish the defaults; the YAML file, when present, overrides them.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Addr:        getEnv("PUBSUB_ADDR", "127.0.0.1:9002"),
		LogLevel:    getEnv("PUBSUB_LOG_LEVEL", "info"),
		MetricsAddr: getEnv("PUBSUB_METRICS_ADDR", "127.0.0.1:9003"),
	}

	if configPath != "" {
		if err := cfg.applyYAMLOverlay(configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyYAMLOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config overlay: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config overlay %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("PUBSUB_ADDR is required")
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("PUBSUB_METRICS_ADDR is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
