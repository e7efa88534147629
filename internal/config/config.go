// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/watchtower/internal/authz"
	"github.com/tomtom215/watchtower/internal/controlplane"
	"github.com/tomtom215/watchtower/internal/eventbus"
	"github.com/tomtom215/watchtower/internal/lockdown"
	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/tokens"
)

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig              `koanf:"server"`
	Logging  LoggingConfig             `koanf:"logging"`
	Security tokens.Config             `koanf:"security"`
	LogStore logstore.Config           `koanf:"logstore"`
	Lockdown lockdown.ControllerConfig `koanf:"lockdown"`
	Authz    authz.Config              `koanf:"authz"`
	Storage  StorageConfig             `koanf:"storage"`
	NATS     eventbus.Config           `koanf:"nats"`
	API      APIConfig                 `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig locates the durable stores.
type StorageConfig struct {
	// BadgerPath holds refresh records and the lockdown row.
	BadgerPath string `koanf:"badger_path"`

	// InMemory keeps Badger in memory; state is lost on restart.
	InMemory bool `koanf:"in_memory"`

	// DuckDBPath holds log history. Empty keeps history in memory.
	DuckDBPath string `koanf:"duckdb_path"`
}

// APIConfig holds HTTP surface settings.
type APIConfig struct {
	CORSOrigins         []string      `koanf:"cors_origins"`
	WebSocketOrigins    []string      `koanf:"websocket_origins"`
	RateLimitReqs       int           `koanf:"rate_limit_reqs"`
	RateLimitWindow     time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled   bool          `koanf:"rate_limit_disabled"`
	SwaggerEnabled      bool          `koanf:"swagger_enabled"`
	LockdownExemptPaths []string      `koanf:"lockdown_exempt_paths"`

	// TrustedProxies are the reverse proxies (IPs or CIDRs) whose
	// forwarding headers identify the client.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether production checks apply.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ControlPlane extracts the component settings.
func (c *Config) ControlPlane() controlplane.Config {
	return controlplane.Config{
		Logs:     c.LogStore,
		Tokens:   c.Security,
		Lockdown: c.Lockdown,
	}
}

// LoggingInit converts the logging section for logging.Init.
func (c *Config) LoggingInit() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
