// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package authz

import (
	"fmt"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/watchtower/internal/metrics"
)

// Roles known to the default policy.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicy grants the control-plane routes.
const DefaultPolicy = `
# lockdown administration
p, ADMIN, /api/v1/lockdown/initiate, POST
p, ADMIN, /api/v1/lockdown/lift, POST

# log access
p, ADMIN, /api/v1/logs, GET
p, ADMIN, /api/v1/logs/stats, GET
p, ADMIN, /api/v1/logs/search, POST
p, ADMIN, /api/v1/logs/export, POST
p, ADMIN, /api/v1/ws/logs, GET

# token administration
p, ADMIN, /api/v1/auth/revoke-all/:userID, POST
p, USER, /api/v1/auth/logout, POST

g, ADMIN, USER
`

// Config holds enforcer settings.
type Config struct {
	ExtraPolicy  string        `koanf:"extra_policy"`
	CacheEnabled bool          `koanf:"cache_enabled"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// DefaultConfig returns caching defaults.
func DefaultConfig() Config {
	return Config{
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
	}
}

// Enforcer wraps a synced Casbin enforcer with a decision cache.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
}

// NewEnforcer builds an enforcer from the compiled-in model, DefaultPolicy
// and cfg.ExtraPolicy.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, DefaultPolicy); err != nil {
		return nil, err
	}
	if err := loadPolicy(enforcer, cfg.ExtraPolicy); err != nil {
		return nil, err
	}

	e := &Enforcer{enforcer: enforcer}
	if cfg.CacheEnabled {
		e.cache = newEnforcementCache(cfg.CacheTTL)
	}
	return e, nil
}

// loadPolicy parses "p," and "g," lines. Blank lines and "#" comments are
// skipped.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Enforce reports whether role may perform method on path.
func (e *Enforcer) Enforce(role, path, method string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(role, path, method); ok {
			metrics.AuthzCacheHits.Inc()
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(role, path, method)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.cache != nil {
		e.cache.set(role, path, method, allowed)
	}
	return allowed, nil
}

// EnforceRoles reports whether any of roles may perform method on path.
func (e *Enforcer) EnforceRoles(roles []string, path, method string) (bool, error) {
	for _, role := range roles {
		allowed, err := e.Enforce(role, path, method)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// AddPolicy grants role method on path at runtime.
func (e *Enforcer) AddPolicy(role, path, method string) (bool, error) {
	added, err := e.enforcer.AddPolicy(role, path, method)
	if err != nil {
		return false, fmt.Errorf("failed to add policy: %w", err)
	}
	if e.cache != nil {
		e.cache.clear()
	}
	return added, nil
}

// RemovePolicy revokes a grant made by AddPolicy or the default policy.
func (e *Enforcer) RemovePolicy(role, path, method string) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(role, path, method)
	if err != nil {
		return false, fmt.Errorf("failed to remove policy: %w", err)
	}
	if e.cache != nil {
		e.cache.clear()
	}
	return removed, nil
}

// Close stops the cache janitor.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}
