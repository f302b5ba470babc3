// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the server configuration from layered
// sources: built-in defaults, an optional YAML file, then environment
// variables.
package config

import (
	"fmt"
	"time"

	"shopgraph/internal/recommend"
)

// Config is the root configuration for the shopgraph server.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Graph     GraphConfig      `koanf:"graph"`
	Recommend recommend.Config `koanf:"recommend"`
	API       APIConfig        `koanf:"api"`
	Logging   LoggingConfig    `koanf:"logging"`
	Prober    ProberConfig     `koanf:"prober"`
	Janitor   JanitorConfig    `koanf:"janitor"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Timeout applies to reads, writes and graceful shutdown.
	Timeout time.Duration `koanf:"timeout"`
}

// GraphConfig selects and configures the graph store backend.
type GraphConfig struct {
	// Driver is "neo4j" or "memory". The memory driver serves local
	// development and tests with an empty graph.
	Driver string `koanf:"driver"`

	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`

	// BreakerEnabled wraps the store in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// APIConfig contains HTTP API behavior settings.
type APIConfig struct {
	// RateLimitRPS is the steady-state requests per second allowed per
	// server. Zero disables rate limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// RateLimitBurst is the token bucket burst size.
	RateLimitBurst int `koanf:"rate_limit_burst"`

	// RequestTimeout bounds a single API request end to end.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ProberConfig controls the store health prober.
type ProberConfig struct {
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
}

// JanitorConfig controls the cache sweep service.
type JanitorConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// Default returns a Config with production defaults. Defaults are applied
// first, then overridden by the config file and environment variables.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8470,
			Timeout: 30 * time.Second,
		},
		Graph: GraphConfig{
			Driver:         "neo4j",
			URI:            "bolt://localhost:7687",
			Username:       "neo4j",
			Password:       "",
			Database:       "",
			BreakerEnabled: true,
		},
		Recommend: *recommend.DefaultConfig(),
		API: APIConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 200,
			RequestTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Prober: ProberConfig{
			Interval: 15 * time.Second,
			Timeout:  5 * time.Second,
		},
		Janitor: JanitorConfig{
			Interval: time.Minute,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %v", c.Server.Timeout)
	}

	switch c.Graph.Driver {
	case "neo4j":
		if c.Graph.URI == "" {
			return fmt.Errorf("graph.uri is required for the neo4j driver")
		}
	case "memory":
	default:
		return fmt.Errorf("graph.driver must be neo4j or memory, got %q", c.Graph.Driver)
	}

	if c.API.RateLimitRPS < 0 {
		return fmt.Errorf("api.rate_limit_rps must be non-negative, got %f", c.API.RateLimitRPS)
	}
	if c.API.RateLimitRPS > 0 && c.API.RateLimitBurst < 1 {
		return fmt.Errorf("api.rate_limit_burst must be positive when rate limiting is on, got %d", c.API.RateLimitBurst)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive, got %v", c.API.RequestTimeout)
	}

	if c.Prober.Interval <= 0 {
		return fmt.Errorf("prober.interval must be positive, got %v", c.Prober.Interval)
	}
	if c.Prober.Timeout <= 0 || c.Prober.Timeout >= c.Prober.Interval {
		return fmt.Errorf("prober.timeout must be positive and below prober.interval, got %v", c.Prober.Timeout)
	}

	if c.Janitor.Interval <= 0 {
		return fmt.Errorf("janitor.interval must be positive, got %v", c.Janitor.Interval)
	}

	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}
