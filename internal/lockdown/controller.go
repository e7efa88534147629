// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/metrics"
)

const (
	auditModule = "security"

	// SystemActor initiates automatic lifts.
	SystemActor = "system"

	// AdminRole bypasses a lockdown that allows admin access.
	AdminRole = "ADMIN"
)

// Auditor receives audit entries. *logstore.Pipeline satisfies it.
type Auditor interface {
	Append(ctx context.Context, e logstore.Entry) logstore.LogRecord
}

// ControllerConfig holds controller settings.
type ControllerConfig struct {
	// AllowList entries (IPs or CIDRs) are never denied.
	AllowList []string `koanf:"whitelist"`

	// DenialAuditInterval and DenialAuditBurst optionally throttle denial
	// audit entries per IP. A zero interval audits every denial.
	// Decisions themselves are never throttled.
	DenialAuditInterval time.Duration `koanf:"denial_audit_interval"`
	DenialAuditBurst    int           `koanf:"denial_audit_burst"`
}

// DefaultControllerConfig returns defaults: no allow-list and an audit
// entry for every denial. DenialAuditBurst applies only once an interval
// is configured.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		DenialAuditBurst: 5,
	}
}

// AccessRequest describes the caller checked against a lockdown.
type AccessRequest struct {
	UserID    string
	Roles     []string
	IPAddress string
	Method    string
	Path      string
}

// Bypass names why a request was let through an active lockdown.
type Bypass string

const (
	BypassNone      Bypass = ""
	BypassAdmin     Bypass = "admin"
	BypassAllowList Bypass = "allowlist"
)

// Decision is the result of CheckAccess. Reason and Message are set on
// denial; RetryAfter is set when the lockdown has an estimated end.
type Decision struct {
	Allowed    bool
	Bypass     Bypass
	Reason     Reason
	Message    string
	RetryAfter time.Duration
}

// autoLift is the armed timer of the current lockdown. gen ties a timer to
// the lockdown that armed it so a stale fire is ignored.
type autoLift struct {
	timer *time.Timer
	gen   uint64
}

// Controller is the lockdown state machine. The zero state is Normal.
type Controller struct {
	store   Store
	auditor Auditor
	allow   *AllowList
	denials *auditLimiter
	now     func() time.Time

	mu      sync.RWMutex
	current *Config
	gen     uint64
	lift    *autoLift
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithAuditor sends audit entries to a.
func WithAuditor(a Auditor) Option {
	return func(c *Controller) { c.auditor = a }
}

// WithClock replaces time.Now for config timestamps and elapsed time.
// Auto-lift timers still run on the real clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Controller in the Normal state. Call Restore to
// pick up a lockdown persisted by a previous process.
func NewController(store Store, cfg ControllerConfig, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("lockdown: store is required")
	}
	allow, err := ParseAllowList(cfg.AllowList)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		store:   store,
		allow:   allow,
		denials: newAuditLimiter(cfg.DenialAuditInterval, cfg.DenialAuditBurst),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.SetLockdownActive(false)
	return c, nil
}

func (c *Controller) audit(ctx context.Context, e logstore.Entry) {
	if c.auditor == nil {
		return
	}
	e.Module = auditModule
	c.auditor.Append(ctx, e)
}

// Initiate locks the system. It fails with ErrLockdownConflict while a
// lockdown is active, leaving the active config and timer untouched.
func (c *Controller) Initiate(ctx context.Context, reason Reason, initiatedBy string, opts Options) (Config, error) {
	reason = Reason(strings.TrimSpace(string(reason)))
	if reason == "" {
		return Config{}, fmt.Errorf("%w: reason is required", ErrInvalidOptions)
	}
	if opts.EstimatedDuration < 0 {
		return Config{}, fmt.Errorf("%w: estimated duration must not be negative", ErrInvalidOptions)
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return Config{}, ErrLockdownConflict
	}

	cfg := buildConfig(reason, initiatedBy, &opts, c.now())
	if err := c.store.Save(ctx, cfg); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("reason", string(reason)).
			Msg("Failed to persist lockdown config, lockdown held in memory only")
	}
	c.current = cfg.Clone()
	c.gen++
	if cfg.EstimatedDuration > 0 {
		c.armLocked(cfg.EstimatedDuration)
	}
	c.mu.Unlock()

	metrics.SetLockdownActive(true)
	metrics.LockdownTransitions.WithLabelValues("locked", actorKind(initiatedBy)).Inc()
	logging.Ctx(ctx).Warn().
		Str("reason", string(reason)).
		Str("initiated_by", initiatedBy).
		Dur("estimated_duration", cfg.EstimatedDuration).
		Msg("Lockdown initiated")

	meta := logstore.Metadata{
		"reason":           logstore.String(string(reason)),
		"allowAdminAccess": logstore.Bool(cfg.AllowAdminAccess),
		"affectedServices": logstore.String(strings.Join(cfg.AffectedServices, ",")),
	}
	if cfg.EstimatedDuration > 0 {
		meta["estimatedDurationMs"] = logstore.Int(cfg.EstimatedDuration.Milliseconds())
	}
	c.audit(ctx, logstore.Entry{
		Level:    logstore.LevelError,
		Message:  "System lockdown initiated",
		Action:   "lockdown_initiate",
		UserID:   initiatedBy,
		Metadata: meta,
	})
	return cfg, nil
}

// armLocked starts the auto-lift timer for the current generation.
// c.mu must be held.
func (c *Controller) armLocked(d time.Duration) {
	if c.closed {
		return
	}
	gen := c.gen
	c.lift = &autoLift{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			err := c.liftGeneration(context.Background(), SystemActor, gen)
			if err != nil && !errors.Is(err, ErrLockdownNotActive) {
				logging.Error().Err(err).Msg("Automatic lockdown lift failed")
			}
		}),
	}
}

// disarmLocked stops any armed timer. c.mu must be held.
func (c *Controller) disarmLocked() {
	if c.lift != nil {
		c.lift.timer.Stop()
		c.lift = nil
	}
}

// Lift unlocks the system. It fails with ErrLockdownNotActive when the
// system is not locked.
func (c *Controller) Lift(ctx context.Context, initiatedBy string) error {
	return c.liftGeneration(ctx, initiatedBy, 0)
}

// liftGeneration lifts the current lockdown; a non-zero gen only lifts the
// lockdown of that generation.
func (c *Controller) liftGeneration(ctx context.Context, initiatedBy string, gen uint64) error {
	c.mu.Lock()
	if c.current == nil || (gen != 0 && gen != c.gen) {
		c.mu.Unlock()
		return ErrLockdownNotActive
	}
	c.disarmLocked()
	cleared := *c.current.Clone()
	cleared.IsActive = false
	if err := c.store.Save(ctx, cleared); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist lockdown lift")
	}
	c.current = nil
	c.gen++
	c.mu.Unlock()

	duration := c.now().Sub(cleared.InitiatedAt)
	metrics.SetLockdownActive(false)
	metrics.LockdownTransitions.WithLabelValues("normal", actorKind(initiatedBy)).Inc()
	logging.Ctx(ctx).Info().
		Str("reason", string(cleared.Reason)).
		Str("lifted_by", initiatedBy).
		Dur("duration", duration).
		Msg("Lockdown lifted")

	c.audit(ctx, logstore.Entry{
		Level:   logstore.LevelInfo,
		Message: "System lockdown lifted",
		Action:  "lockdown_lift",
		UserID:  initiatedBy,
		Metadata: logstore.Metadata{
			"reason":     logstore.String(string(cleared.Reason)),
			"durationMs": logstore.Int(duration.Milliseconds()),
			"automatic":  logstore.Bool(initiatedBy == SystemActor),
		},
	})
	return nil
}

func actorKind(actor string) string {
	if actor == SystemActor {
		return "system"
	}
	return "user"
}

// IsActive reports whether the system is locked.
func (c *Controller) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// CurrentConfig returns a copy of the active config, or nil when Normal.
func (c *Controller) CurrentConfig() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// CheckAccess decides whether req may proceed. In Normal state everything
// is allowed. While locked, admins pass when the lockdown allows admin
// access and allow-listed addresses always pass.
func (c *Controller) CheckAccess(ctx context.Context, req AccessRequest) Decision {
	cfg := c.CurrentConfig()
	if cfg == nil {
		return Decision{Allowed: true}
	}

	var retryAfter time.Duration
	if d, ok := cfg.Remaining(c.now()); ok {
		retryAfter = d
	}

	switch {
	case cfg.AllowAdminAccess && hasRole(req.Roles, AdminRole):
		metrics.LockdownDecisions.WithLabelValues("admin_bypass").Inc()
		c.audit(ctx, c.accessEntry(cfg, &req, logstore.LevelWarn, "Admin access during lockdown", "lockdown_admin_bypass", 0))
		return Decision{Allowed: true, Bypass: BypassAdmin, RetryAfter: retryAfter}

	case c.allow.Contains(req.IPAddress):
		metrics.LockdownDecisions.WithLabelValues("allowlist").Inc()
		return Decision{Allowed: true, Bypass: BypassAllowList, RetryAfter: retryAfter}
	}

	metrics.LockdownDecisions.WithLabelValues("denied").Inc()
	if ok, suppressed := c.denials.allow(req.IPAddress, c.now()); ok {
		c.audit(ctx, c.accessEntry(cfg, &req, logstore.LevelWarn, "Access attempt during lockdown", "lockdown_access_denied", suppressed))
	}
	return Decision{
		Allowed:    false,
		Reason:     cfg.Reason,
		Message:    cfg.Message,
		RetryAfter: retryAfter,
	}
}

func (c *Controller) accessEntry(cfg *Config, req *AccessRequest, level logstore.Level, message, action string, suppressed int) logstore.Entry {
	meta := logstore.Metadata{"lockdownReason": logstore.String(string(cfg.Reason))}
	if suppressed > 0 {
		meta["suppressedSinceLast"] = logstore.Int(int64(suppressed))
	}
	return logstore.Entry{
		Level:     level,
		Message:   message,
		Action:    action,
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
		Method:    req.Method,
		Path:      req.Path,
		Metadata:  meta,
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Restore loads the persisted config at startup. An active lockdown is
// resumed with its auto-lift re-armed for the remaining time, so a
// restart neither extends nor cancels it. An unreadable config leaves the
// system Normal.
func (c *Controller) Restore(ctx context.Context) {
	cfg, err := c.store.Load(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to load lockdown config, assuming normal operation")
		return
	}
	if cfg == nil || !cfg.IsActive {
		return
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return
	}
	c.current = cfg.Clone()
	c.gen++
	remaining, timed := cfg.Remaining(c.now())
	if timed {
		c.armLocked(remaining)
	}
	c.mu.Unlock()

	metrics.SetLockdownActive(true)
	ev := logging.Ctx(ctx).Warn().Str("reason", string(cfg.Reason)).Time("initiated_at", cfg.InitiatedAt)
	if timed {
		ev = ev.Dur("remaining", remaining)
	}
	ev.Msg("Active lockdown restored")

	c.audit(ctx, logstore.Entry{
		Level:   logstore.LevelWarn,
		Message: "Active lockdown restored after restart",
		Action:  "lockdown_restore",
		UserID:  cfg.InitiatedBy,
		Metadata: logstore.Metadata{
			"reason": logstore.String(string(cfg.Reason)),
		},
	})
}

// Close stops the auto-lift timer. The lockdown itself stays persisted.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.disarmLocked()
}
