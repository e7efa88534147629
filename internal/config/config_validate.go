// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/watchtower/internal/lockdown"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/middleware"
)

// minSecretLength matches the token ledger's requirement.
const minSecretLength = 32

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateSecurity,
		c.validateLogStore,
		c.validateLockdown,
		c.validateStorage,
		c.validateNATS,
		c.validateAPI,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateSecurity requires either both token secrets or a master secret
// to derive them from.
func (c *Config) validateSecurity() error {
	s := &c.Security
	for name, secret := range map[string]string{"JWT_ACCESS_SECRET": s.AccessSecret, "JWT_REFRESH_SECRET": s.RefreshSecret} {
		if secret != "" && len(secret) < minSecretLength {
			return fmt.Errorf("%s must be at least %d characters", name, minSecretLength)
		}
	}
	if s.AccessSecret == "" || s.RefreshSecret == "" {
		if len(s.MasterSecret) < minSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters (generate with: openssl rand -base64 48)", minSecretLength)
		}
	}
	if s.AccessSecret != "" && s.AccessSecret == s.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if s.AccessTTL <= 0 || s.RefreshTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive")
	}
	if s.RefreshTTL <= s.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must exceed ACCESS_TOKEN_TTL (%s)", s.RefreshTTL, s.AccessTTL)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("TOKEN_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateLogStore() error {
	l := &c.LogStore
	if l.RingSize < 1 || l.QueueSize < 1 || l.SubscriberBuffer < 1 {
		return fmt.Errorf("LOG_RING_SIZE, LOG_QUEUE_SIZE and LOG_SUBSCRIBER_BUFFER must be positive")
	}
	if l.RetentionDays < 1 {
		return fmt.Errorf("LOG_RETENTION_DAYS must be at least 1")
	}
	if l.RetentionInterval < time.Minute {
		return fmt.Errorf("LOG_RETENTION_INTERVAL must be at least 1m")
	}
	return nil
}

func (c *Config) validateLockdown() error {
	if _, err := lockdown.ParseAllowList(c.Lockdown.AllowList); err != nil {
		return fmt.Errorf("LOCKDOWN_WHITELIST: %w", err)
	}
	for _, p := range c.API.LockdownExemptPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("LOCKDOWN_EXEMPT_PATHS entries must start with '/', got %q", p)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.BadgerPath == "" {
		return fmt.Errorf("BADGER_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL: %w", err)
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX is required when NATS_ENABLED=true")
	}
	if _, err := logstore.ParseLevel(c.NATS.MinLevel); err != nil {
		return fmt.Errorf("NATS_MIN_LEVEL: %w", err)
	}
	return nil
}

func (c *Config) validateAPI() error {
	// Wildcard CORS lets any site drive the API with a stolen bearer token.
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://console.example.com")
	}
	if _, err := middleware.ParseTrustedProxies(c.API.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if c.API.RateLimitDisabled {
		return nil
	}
	if c.API.RateLimitReqs < 1 || c.API.RateLimitReqs > 100000 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000")
	}
	if c.API.RateLimitWindow < time.Second || c.API.RateLimitWindow > time.Hour {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.API.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
