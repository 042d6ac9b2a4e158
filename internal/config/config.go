// Package config loads service configuration from the environment, from
// .env files, or from a YAML file.
package config

import (
	"errors"
	"os"
	"time"
)

// ErrMissingDatabaseURL is returned when no database DSN is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds the service configuration.
type Config struct {
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort  string        `yaml:"server_port" env:"SERVER_PORT"`
	UserAgent   string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout     time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`

	// ProxyPublicURL is the externally reachable base URL of this
	// service, used when rewriting manifests and synthesizing stream
	// URLs. Empty disables proxy wrapping of imported URLs.
	ProxyPublicURL string `yaml:"proxy_public_url" env:"PROXY_PUBLIC_URL"`
}

// Load builds config from environment variables. When DATABASE_URL is
// unset it first tries .env.local and .env. DATABASE_URL is required;
// everything else is optional.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ServerPort:     os.Getenv("SERVER_PORT"),
		UserAgent:      os.Getenv("FETCHER_USER_AGENT"),
		ProxyPublicURL: os.Getenv("PROXY_PUBLIC_URL"),
		Timeout:        30 * time.Second,
	}
	applyDefaults(c)
	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.Timeout = d
		}
	}
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

func applyDefaults(c *Config) {
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.UserAgent == "" {
		c.UserAgent = "Streamdock/1.0"
	}
}
