// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var testSecret = strings.Repeat("x", 32)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Security.AccessTTL != 15*time.Minute {
		t.Errorf("Security.AccessTTL = %v, want 15m", cfg.Security.AccessTTL)
	}
	if cfg.Security.RefreshTTL != 7*24*time.Hour {
		t.Errorf("Security.RefreshTTL = %v, want 168h", cfg.Security.RefreshTTL)
	}
	if cfg.LogStore.RetentionDays != 30 {
		t.Errorf("LogStore.RetentionDays = %d, want 30", cfg.LogStore.RetentionDays)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS should be disabled by default")
	}
	if cfg.Storage.InMemory {
		t.Error("Storage should be durable by default")
	}
	if !cfg.API.SwaggerEnabled {
		t.Error("Swagger should be enabled by default")
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("LOCKDOWN_WHITELIST", "10.0.0.0/8, 192.168.1.10 ,")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("STORAGE_IN_MEMORY", "true")
	t.Setenv("LOG_RETENTION_DAYS", "7")
	t.Setenv("TRUSTED_PROXIES", "10.1.0.1,172.16.0.0/12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Security.MasterSecret != testSecret {
		t.Error("JWT_SECRET not mapped to security.master_secret")
	}
	if cfg.Security.AccessTTL != 5*time.Minute {
		t.Errorf("Security.AccessTTL = %v", cfg.Security.AccessTTL)
	}
	if want := []string{"10.0.0.0/8", "192.168.1.10"}; !reflect.DeepEqual(cfg.Lockdown.AllowList, want) {
		t.Errorf("Lockdown.AllowList = %v, want %v", cfg.Lockdown.AllowList, want)
	}
	if want := []string{"https://a.example.com", "https://b.example.com"}; !reflect.DeepEqual(cfg.API.CORSOrigins, want) {
		t.Errorf("API.CORSOrigins = %v, want %v", cfg.API.CORSOrigins, want)
	}
	if want := []string{"10.1.0.1", "172.16.0.0/12"}; !reflect.DeepEqual(cfg.API.TrustedProxies, want) {
		t.Errorf("API.TrustedProxies = %v, want %v", cfg.API.TrustedProxies, want)
	}
	if !cfg.Storage.InMemory {
		t.Error("STORAGE_IN_MEMORY not applied")
	}
	if cfg.LogStore.RetentionDays != 7 {
		t.Errorf("LogStore.RetentionDays = %d", cfg.LogStore.RetentionDays)
	}

	cp := cfg.ControlPlane()
	if cp.Tokens.MasterSecret != testSecret || len(cp.Lockdown.AllowList) != 2 || cp.Logs.RetentionDays != 7 {
		t.Errorf("ControlPlane() did not carry sections: %+v", cp)
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 7000
  environment: production
security:
  master_secret: ` + testSecret + `
lockdown:
  whitelist:
    - 203.0.113.5
api:
  cors_origins:
    - https://console.example.com
nats:
  enabled: true
  url: nats://nats.internal:4222
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("env should override file: port = %d", cfg.Server.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment from file")
	}
	if len(cfg.Lockdown.AllowList) != 1 || cfg.Lockdown.AllowList[0] != "203.0.113.5" {
		t.Errorf("AllowList = %v", cfg.Lockdown.AllowList)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://nats.internal:4222" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
	if cfg.NATS.SubjectPrefix != "watchtower.logs" {
		t.Errorf("unset keys should keep defaults, SubjectPrefix = %q", cfg.NATS.SubjectPrefix)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.MasterSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad environment", func(c *Config) { c.Server.Environment = "staging" }, "ENVIRONMENT"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"short master secret", func(c *Config) { c.Security.MasterSecret = "short" }, "JWT_SECRET"},
		{"explicit secrets without master", func(c *Config) {
			c.Security.MasterSecret = ""
			c.Security.AccessSecret = strings.Repeat("a", 32)
			c.Security.RefreshSecret = strings.Repeat("r", 32)
		}, ""},
		{"short access secret", func(c *Config) { c.Security.AccessSecret = "short" }, "JWT_ACCESS_SECRET"},
		{"identical secrets", func(c *Config) {
			c.Security.AccessSecret = strings.Repeat("a", 32)
			c.Security.RefreshSecret = strings.Repeat("a", 32)
		}, "must differ"},
		{"refresh not longer than access", func(c *Config) { c.Security.RefreshTTL = c.Security.AccessTTL }, "REFRESH_TOKEN_TTL"},
		{"zero ring", func(c *Config) { c.LogStore.RingSize = 0 }, "LOG_RING_SIZE"},
		{"zero retention", func(c *Config) { c.LogStore.RetentionDays = 0 }, "LOG_RETENTION_DAYS"},
		{"bad whitelist", func(c *Config) { c.Lockdown.AllowList = []string{"not-an-ip"} }, "LOCKDOWN_WHITELIST"},
		{"bad trusted proxy", func(c *Config) { c.API.TrustedProxies = []string{"proxy.internal"} }, "TRUSTED_PROXIES"},
		{"relative exempt path", func(c *Config) { c.API.LockdownExemptPaths = []string{"health"} }, "LOCKDOWN_EXEMPT_PATHS"},
		{"no badger path", func(c *Config) { c.Storage.BadgerPath = "" }, "BADGER_PATH"},
		{"in-memory without path", func(c *Config) {
			c.Storage.BadgerPath = ""
			c.Storage.InMemory = true
		}, ""},
		{"nats bad scheme", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://nats:4222"
		}, "NATS_URL"},
		{"nats bad level", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.MinLevel = "verbose"
		}, "NATS_MIN_LEVEL"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"rate limit out of range", func(c *Config) { c.API.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.API.RateLimitReqs = 0
			c.API.RateLimitDisabled = true
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"JWT_SECRET":         "security.master_secret",
		"LOCKDOWN_WHITELIST": "lockdown.whitelist",
		"cors_origins":       "api.cors_origins",
		"PATH":               "",
		"HOME":               "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
