// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/watchtower/internal/lockdown"
	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/tokens"
)

// Config groups the component settings.
type Config struct {
	Logs     logstore.Config           `koanf:"logstore"`
	Tokens   tokens.Config             `koanf:"tokens"`
	Lockdown lockdown.ControllerConfig `koanf:"lockdown"`
}

// DefaultConfig returns component defaults. Token secrets must still be
// supplied.
func DefaultConfig() Config {
	return Config{
		Logs:     logstore.DefaultConfig(),
		Tokens:   tokens.DefaultConfig(),
		Lockdown: lockdown.DefaultControllerConfig(),
	}
}

// Deps are the durable backends. Nil stores fall back to in-memory ones.
type Deps struct {
	LogStore      logstore.Store
	TokenStore    tokens.Store
	LockdownStore lockdown.Store

	// Forwarder optionally receives every appended record.
	Forwarder logstore.Forwarder

	// Clock overrides time.Now in every component.
	Clock func() time.Time
}

// Plane is the control-plane façade.
type Plane struct {
	Logs     *logstore.Pipeline
	Tokens   *tokens.Ledger
	Lockdown *lockdown.Controller

	closeOnce sync.Once
	closeErr  error
}

// New builds the three components, wires their audit trails into the
// pipeline and restores any persisted lockdown.
func New(ctx context.Context, cfg Config, deps Deps) (*Plane, error) {
	if deps.LogStore == nil {
		deps.LogStore = logstore.NewMemoryStore(0)
	}
	if deps.TokenStore == nil {
		deps.TokenStore = tokens.NewMemoryStore()
	}
	if deps.LockdownStore == nil {
		deps.LockdownStore = lockdown.NewMemoryStore()
	}

	var logOpts []logstore.Option
	var tokenOpts []tokens.Option
	var lockOpts []lockdown.Option
	if deps.Forwarder != nil {
		logOpts = append(logOpts, logstore.WithForwarder(deps.Forwarder))
	}
	if deps.Clock != nil {
		logOpts = append(logOpts, logstore.WithClock(deps.Clock))
		tokenOpts = append(tokenOpts, tokens.WithClock(deps.Clock))
		lockOpts = append(lockOpts, lockdown.WithClock(deps.Clock))
	}

	pipeline := logstore.New(deps.LogStore, cfg.Logs, logOpts...)

	ledger, err := tokens.NewLedger(deps.TokenStore, cfg.Tokens, append(tokenOpts, tokens.WithAuditor(pipeline))...)
	if err != nil {
		_ = pipeline.Close()
		return nil, fmt.Errorf("token ledger: %w", err)
	}

	ctrl, err := lockdown.NewController(deps.LockdownStore, cfg.Lockdown, append(lockOpts, lockdown.WithAuditor(pipeline))...)
	if err != nil {
		_ = pipeline.Close()
		return nil, fmt.Errorf("lockdown controller: %w", err)
	}
	ctrl.Restore(ctx)

	logging.Info().
		Bool("lockdown_active", ctrl.IsActive()).
		Int("allow_list", len(cfg.Lockdown.AllowList)).
		Msg("Control plane ready")

	return &Plane{Logs: pipeline, Tokens: ledger, Lockdown: ctrl}, nil
}

// InitiateRequest is the input to InitiateLockdown.
type InitiateRequest struct {
	Reason      lockdown.Reason
	InitiatedBy string
	Options     lockdown.Options
}

// InitiateResult reports the new lockdown and any session revocations.
type InitiateResult struct {
	Config lockdown.Config `json:"config"`

	// Revoked maps each requested user to the number of refresh families
	// revoked in memory. RevokeFailures lists users whose durable
	// revocation failed; their sessions are still rejected by this process.
	Revoked        map[string]int `json:"revoked,omitempty"`
	RevokeFailures []string       `json:"revokeFailures,omitempty"`
}

// InitiateLockdown starts a lockdown. For security incidents
// (security_breach, data_breach) the sessions of revokeUsers are revoked
// after the lockdown is in place; for other reasons revokeUsers is
// ignored. Revocation failures do not undo the lockdown.
func (p *Plane) InitiateLockdown(ctx context.Context, req InitiateRequest, revokeUsers ...string) (InitiateResult, error) {
	cfg, err := p.Lockdown.Initiate(ctx, req.Reason, req.InitiatedBy, req.Options)
	if err != nil {
		return InitiateResult{}, err
	}
	result := InitiateResult{Config: cfg}
	if !cfg.Reason.IsSecurityIncident() || len(revokeUsers) == 0 {
		return result, nil
	}

	result.Revoked = make(map[string]int, len(revokeUsers))
	seen := make(map[string]bool, len(revokeUsers))
	for _, userID := range revokeUsers {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		n, err := p.Tokens.RevokeAll(ctx, userID)
		result.Revoked[userID] = n
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Failed to persist session revocation during lockdown")
			result.RevokeFailures = append(result.RevokeFailures, userID)
		}
	}
	return result, nil
}

// LiftLockdown ends the active lockdown.
func (p *Plane) LiftLockdown(ctx context.Context, liftedBy string) error {
	return p.Lockdown.Lift(ctx, liftedBy)
}

// Close stops the lockdown timer and drains the pipeline. It is safe to
// call more than once.
func (p *Plane) Close() error {
	p.closeOnce.Do(func() {
		p.Lockdown.Close()
		if err := p.Logs.Close(); err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = fmt.Errorf("log pipeline: %w", err)
		}
	})
	return p.closeErr
}
