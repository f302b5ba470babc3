// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first match
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shopgraph/config.yaml",
	"/etc/shopgraph/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment noise never pollutes
// the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - NEO4J_URI -> graph.uri
//   - RECOMMEND_WEIGHT_COOCCURRENCE -> recommend.weights.cooccurrence
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Graph store mappings
		"graph_driver":          "graph.driver",
		"neo4j_uri":             "graph.uri",
		"neo4j_username":        "graph.username",
		"neo4j_password":        "graph.password",
		"neo4j_database":        "graph.database",
		"graph_breaker_enabled": "graph.breaker_enabled",

		// API mappings
		"api_rate_limit_rps":   "api.rate_limit_rps",
		"api_rate_limit_burst": "api.rate_limit_burst",
		"api_request_timeout":  "api.request_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Health prober and cache janitor mappings
		"prober_interval":  "prober.interval",
		"prober_timeout":   "prober.timeout",
		"janitor_interval": "janitor.interval",

		// Recommendation engine mappings
		"recommend_weight_cooccurrence":  "recommend.weights.cooccurrence",
		"recommend_weight_collaborative": "recommend.weights.collaborative",
		"recommend_weight_category":      "recommend.weights.category",
		"recommend_weight_popularity":    "recommend.weights.popularity",
		"recommend_weight_view":          "recommend.interactions.view",
		"recommend_weight_click":         "recommend.interactions.click",
		"recommend_weight_add_to_cart":   "recommend.interactions.add_to_cart",
		"recommend_cooccur_candidates":   "recommend.cooccurrence.candidate_limit",
		"recommend_cooccur_damping":      "recommend.cooccurrence.damp_popularity",
		"recommend_collab_neighbors":     "recommend.collaborative.neighbor_limit",
		"recommend_collab_similarity":    "recommend.collaborative.similarity",
		"recommend_category_candidates":  "recommend.category.candidate_limit",
		"recommend_default_limit":        "recommend.limits.default_limit",
		"recommend_max_limit":            "recommend.limits.max_limit",
		"recommend_source_timeout":       "recommend.limits.source_timeout",
		"recommend_cache_enabled":        "recommend.cache.enabled",
		"recommend_cache_ttl":            "recommend.cache.ttl",
		"recommend_cache_max_entries":    "recommend.cache.max_entries",
		"recommend_fallback_popularity":  "recommend.fallback.popularity_on_empty",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile invokes callback whenever the config file changes. The
// caller owns synchronization around any state the callback updates.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
