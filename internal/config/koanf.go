// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/watchtower/internal/authz"
	"github.com/tomtom215/watchtower/internal/eventbus"
	"github.com/tomtom215/watchtower/internal/lockdown"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/tokens"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watchtower/config.yaml",
	"/etc/watchtower/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied before the
// file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second, // exports can be large
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: tokens.DefaultConfig(),
		LogStore: logstore.DefaultConfig(),
		Lockdown: lockdown.DefaultControllerConfig(),
		Authz:    authz.DefaultConfig(),
		Storage: StorageConfig{
			BadgerPath: "/data/badger",
			DuckDBPath: "/data/watchtower.duckdb",
		},
		NATS: eventbus.DefaultConfig(),
		API: APIConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			SwaggerEnabled:  true,
		},
	}
}

// Load reads defaults, the optional YAML file and the environment, then
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

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

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"api.websocket_origins",
	"api.lockdown_exempt_paths",
	"api.trusted_proxies",
	"lockdown.whitelist",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables (lowercased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"jwt_secret":           "security.master_secret",
	"jwt_access_secret":    "security.access_secret",
	"jwt_refresh_secret":   "security.refresh_secret",
	"access_token_ttl":     "security.access_ttl",
	"refresh_token_ttl":    "security.refresh_ttl",
	"jwt_issuer":           "security.issuer",
	"token_sweep_interval": "security.sweep_interval",

	"log_ring_size":          "logstore.ring_size",
	"log_queue_size":         "logstore.queue_size",
	"log_subscriber_buffer":  "logstore.subscriber_buffer",
	"log_write_timeout":      "logstore.write_timeout",
	"log_retention_days":     "logstore.retention_days",
	"log_retention_interval": "logstore.retention_interval",

	"lockdown_whitelist":             "lockdown.whitelist",
	"lockdown_denial_audit_interval": "lockdown.denial_audit_interval",
	"lockdown_denial_audit_burst":    "lockdown.denial_audit_burst",
	"lockdown_exempt_paths":          "api.lockdown_exempt_paths",

	"casbin_extra_policy":  "authz.extra_policy",
	"casbin_cache_enabled": "authz.cache_enabled",
	"casbin_cache_ttl":     "authz.cache_ttl",

	"badger_path":       "storage.badger_path",
	"storage_in_memory": "storage.in_memory",
	"duckdb_path":       "storage.duckdb_path",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_subject_prefix": "nats.subject_prefix",
	"nats_min_level":      "nats.min_level",
	"nats_jetstream":      "nats.jetstream",

	"cors_origins":        "api.cors_origins",
	"ws_origins":          "api.websocket_origins",
	"rate_limit_requests": "api.rate_limit_reqs",
	"rate_limit_window":   "api.rate_limit_window",
	"disable_rate_limit":  "api.rate_limit_disabled",
	"swagger_enabled":     "api.swagger_enabled",
	"trusted_proxies":     "api.trusted_proxies",
}

// envTransformFunc maps an environment variable to its koanf path, or ""
// to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
