// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package tokens

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/metrics"
)

const (
	auditModule = "tokens"

	minSecretLength   = 32
	keyDerivationSalt = "watchtower-token-ledger"
)

// Config holds ledger settings. Empty secrets are derived from
// MasterSecret.
type Config struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	MasterSecret  string        `koanf:"master_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	Issuer        string        `koanf:"issuer"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// DefaultConfig returns the standard TTLs. Secrets must still be supplied.
func DefaultConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "watchtower",
		SweepInterval: 5 * time.Minute,
	}
}

// Auditor receives audit entries. *logstore.Pipeline satisfies it.
type Auditor interface {
	Append(ctx context.Context, e logstore.Entry) logstore.LogRecord
}

type cacheEntry struct {
	userID     string
	expiresAt  time.Time
	hash       string
	memoryOnly bool
}

// Ledger issues, verifies, rotates and revokes JWT pairs. Refresh
// families are tracked in an in-memory cache backed by a durable Store;
// a refresh token is only accepted when both agree.
type Ledger struct {
	store      Store
	auditor    Auditor
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	sweepEvery time.Duration
	now        func() time.Time

	locks *keyedMutex

	mu         sync.RWMutex
	cache      map[string]cacheEntry
	tombstones map[string]time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAuditor sends audit entries to a.
func WithAuditor(a Auditor) Option {
	return func(l *Ledger) { l.auditor = a }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger validates cfg and builds a Ledger over store.
func NewLedger(store Store, cfg Config, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("tokens: store is required")
	}
	defaults := DefaultConfig()
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaults.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaults.RefreshTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}

	accessKey, err := resolveSecret(cfg.AccessSecret, cfg.MasterSecret, "access-token-signing")
	if err != nil {
		return nil, fmt.Errorf("access secret: %w", err)
	}
	refreshKey, err := resolveSecret(cfg.RefreshSecret, cfg.MasterSecret, "refresh-token-signing")
	if err != nil {
		return nil, fmt.Errorf("refresh secret: %w", err)
	}

	l := &Ledger{
		store:      store,
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		sweepEvery: cfg.SweepInterval,
		now:        time.Now,
		locks:      newKeyedMutex(),
		cache:      make(map[string]cacheEntry),
		tombstones: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// resolveSecret returns explicit when set, otherwise an HKDF-SHA256
// derivation of master bound to info.
func resolveSecret(explicit, master, info string) ([]byte, error) {
	if explicit != "" {
		if len(explicit) < minSecretLength {
			return nil, fmt.Errorf("must be at least %d characters", minSecretLength)
		}
		return []byte(explicit), nil
	}
	if len(master) < minSecretLength {
		return nil, fmt.Errorf("no secret configured and master secret shorter than %d characters", minSecretLength)
	}
	reader := hkdf.New(sha256.New, []byte(master), []byte(keyDerivationSalt), []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}
	return key, nil
}

func (l *Ledger) audit(ctx context.Context, level logstore.Level, message, action, userID string, meta logstore.Metadata) {
	if l.auditor == nil {
		return
	}
	l.auditor.Append(ctx, logstore.Entry{
		Level:    level,
		Module:   auditModule,
		Message:  message,
		Action:   action,
		UserID:   userID,
		Metadata: meta,
	})
}

func (l *Ledger) key(kind Kind) []byte {
	if kind == KindRefresh {
		return l.refreshKey
	}
	return l.accessKey
}

// newPair signs an access/refresh pair sharing jti.
func (l *Ledger) newPair(userID, deviceID, jti string, roles []string) (Pair, error) {
	now := l.now()
	accessExp := now.Add(l.accessTTL)
	refreshExp := now.Add(l.refreshTTL)

	access, err := sign(l.accessKey, &Claims{
		Type:  KindAccess,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			Issuer:    l.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return Pair{}, err
	}
	refresh, err := sign(l.refreshKey, &Claims{
		Type:     KindRefresh,
		DeviceID: deviceID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			Issuer:    l.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (l *Ledger) recordFor(pair *Pair, userID, deviceID, jti string) RefreshRecord {
	return RefreshRecord{
		JTI:       jti,
		UserID:    userID,
		DeviceID:  deviceID,
		TokenHash: hashToken(pair.RefreshToken),
		IssuedAt:  l.now(),
		ExpiresAt: pair.RefreshExpiresAt,
	}
}

func (l *Ledger) cacheRecord(rec *RefreshRecord, memoryOnly bool) {
	l.mu.Lock()
	l.cache[rec.JTI] = cacheEntry{
		userID:     rec.UserID,
		expiresAt:  rec.ExpiresAt,
		hash:       rec.TokenHash,
		memoryOnly: memoryOnly,
	}
	size := len(l.cache)
	l.mu.Unlock()
	metrics.TokenCacheEntries.Set(float64(size))
}

// tombstone evicts jti and remembers it as revoked until expiresAt so a
// cache miss cannot reload it from a stale store.
func (l *Ledger) tombstone(jti string, expiresAt time.Time) {
	l.mu.Lock()
	if entry, ok := l.cache[jti]; ok && entry.expiresAt.After(expiresAt) {
		expiresAt = entry.expiresAt
	}
	delete(l.cache, jti)
	l.tombstones[jti] = expiresAt
	size := len(l.cache)
	l.mu.Unlock()
	metrics.TokenCacheEntries.Set(float64(size))
}

func (l *Ledger) evict(jti string) {
	l.mu.Lock()
	delete(l.cache, jti)
	size := len(l.cache)
	l.mu.Unlock()
	metrics.TokenCacheEntries.Set(float64(size))
}

// Issue creates a new token pair for userID under a fresh jti. A durable
// write failure does not fail the call; the family then lives in memory
// only for the rest of the process lifetime.
func (l *Ledger) Issue(ctx context.Context, userID, deviceID string, roles ...string) (Pair, error) {
	if userID == "" {
		return Pair{}, fmt.Errorf("%w: empty user id", ErrInvalidToken)
	}
	jti := uuid.New().String()
	pair, err := l.newPair(userID, deviceID, jti, roles)
	if err != nil {
		return Pair{}, err
	}

	rec := l.recordFor(&pair, userID, deviceID, jti)
	memoryOnly := false
	if err := l.store.Create(ctx, rec); err != nil {
		memoryOnly = true
		metrics.TokenStoreFailures.WithLabelValues("create").Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("user_id", userID).
			Str("jti", jti).
			Msg("Failed to persist refresh record, keeping it in memory only")
	}
	l.cacheRecord(&rec, memoryOnly)
	metrics.TokensIssued.Inc()

	meta := logstore.Metadata{"jti": logstore.String(jti)}
	if deviceID != "" {
		meta["deviceId"] = logstore.String(deviceID)
	}
	if memoryOnly {
		meta["memoryOnly"] = logstore.Bool(true)
	}
	l.audit(ctx, logstore.LevelInfo, "Token pair issued", "token_issue", userID, meta)
	return pair, nil
}

// Verify checks a token of the given kind. Access tokens are checked by
// signature and expiry alone. Refresh tokens must also be live in the
// cache and confirmed by the durable store.
func (l *Ledger) Verify(ctx context.Context, raw string, kind Kind) (*Claims, error) {
	claims, err := l.verify(ctx, raw, kind)
	if err != nil {
		metrics.RecordTokenVerifyFailure(string(kind), failureReason(err))
		return nil, err
	}
	return claims, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	default:
		return "invalid"
	}
}

func (l *Ledger) verify(ctx context.Context, raw string, kind Kind) (*Claims, error) {
	if kind != KindAccess && kind != KindRefresh {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, kind)
	}
	claims, err := parse(raw, l.key(kind), l.issuer, l.now, false)
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Type)
	}
	if kind == KindAccess {
		return claims, nil
	}
	if err := l.confirmRefresh(ctx, claims.ID, claims.Subject, hashToken(raw)); err != nil {
		return nil, err
	}
	return claims, nil
}

// confirmRefresh requires the jti to be live in memory and in the store.
// A cache miss loads the record from the store.
func (l *Ledger) confirmRefresh(ctx context.Context, jti, userID, hash string) error {
	now := l.now()

	l.mu.RLock()
	_, dead := l.tombstones[jti]
	entry, cached := l.cache[jti]
	l.mu.RUnlock()

	if dead {
		return ErrTokenRevoked
	}
	if cached {
		if entry.userID != userID || entry.hash != hash {
			return ErrTokenRevoked
		}
		if !now.Before(entry.expiresAt) {
			l.evict(jti)
			return ErrTokenExpired
		}
	}

	rec, err := l.store.Get(ctx, jti)
	switch {
	case err == nil:
	case cached && entry.memoryOnly && !errors.Is(err, ErrRecordNotFound):
		// Store still unreachable; memory is authoritative for this family.
		return nil
	default:
		if !errors.Is(err, ErrRecordNotFound) {
			metrics.TokenStoreFailures.WithLabelValues("get").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("jti", jti).Msg("Refresh record could not be confirmed")
		}
		if cached {
			l.evict(jti)
		}
		return ErrTokenRevoked
	}

	if rec.Revoked || rec.UserID != userID || rec.TokenHash != hash {
		l.tombstone(jti, rec.ExpiresAt)
		return ErrTokenRevoked
	}
	if !now.Before(rec.ExpiresAt) {
		l.evict(jti)
		return ErrTokenExpired
	}
	if !cached {
		l.cacheRecord(&rec, false)
	}
	return nil
}

// Rotate exchanges a live refresh token for a new pair under a new jti
// and revokes the old one. Concurrent rotations of the same token are
// serialized; exactly one succeeds and the others get ErrTokenRevoked.
// An empty deviceID keeps the old token's device.
func (l *Ledger) Rotate(ctx context.Context, oldRefresh, deviceID string) (Pair, error) {
	claims, err := parse(oldRefresh, l.refreshKey, l.issuer, l.now, false)
	if err != nil {
		metrics.RecordTokenVerifyFailure(string(KindRefresh), failureReason(err))
		return Pair{}, err
	}
	if claims.Type != KindRefresh {
		return Pair{}, fmt.Errorf("%w: expected refresh token", ErrInvalidToken)
	}

	unlock := l.locks.Lock(claims.ID)
	defer unlock()

	oldHash := hashToken(oldRefresh)
	if err := l.confirmRefresh(ctx, claims.ID, claims.Subject, oldHash); err != nil {
		metrics.RecordTokenVerifyFailure(string(KindRefresh), failureReason(err))
		if errors.Is(err, ErrTokenRevoked) {
			l.audit(ctx, logstore.LevelWarn, "Rejected rotation of revoked refresh token",
				"token_rotate_rejected", claims.Subject, logstore.Metadata{"jti": logstore.String(claims.ID)})
		}
		return Pair{}, err
	}

	if deviceID == "" {
		deviceID = claims.DeviceID
	}
	newJTI := uuid.New().String()
	pair, err := l.newPair(claims.Subject, deviceID, newJTI, claims.Roles)
	if err != nil {
		return Pair{}, err
	}
	next := l.recordFor(&pair, claims.Subject, deviceID, newJTI)

	memoryOnly := false
	if err := l.store.Rotate(ctx, claims.ID, oldHash, next); err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			l.tombstone(claims.ID, claims.ExpiresAt.Time)
			return Pair{}, ErrTokenRevoked
		}
		memoryOnly = true
		metrics.TokenStoreFailures.WithLabelValues("rotate").Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("user_id", claims.Subject).
			Str("old_jti", claims.ID).
			Str("new_jti", newJTI).
			Msg("Failed to persist rotation, revoking in memory only")
	}

	l.tombstone(claims.ID, claims.ExpiresAt.Time)
	l.cacheRecord(&next, memoryOnly)
	metrics.TokensRotated.Inc()

	l.audit(ctx, logstore.LevelInfo, "Refresh token rotated", "token_rotate", claims.Subject, logstore.Metadata{
		"oldJti": logstore.String(claims.ID),
		"newJti": logstore.String(newJTI),
	})
	return pair, nil
}

// Revoke revokes the family of token, which may be either kind and may
// already be expired. Revoking twice is not an error.
func (l *Ledger) Revoke(ctx context.Context, raw string) error {
	return l.revoke(ctx, raw, "")
}

// RevokeOwned is Revoke restricted to tokens whose subject is userID. The
// check runs on the same claims that select the family, so an expired or
// access-kind token of another user yields ErrTokenNotOwned.
func (l *Ledger) RevokeOwned(ctx context.Context, raw, userID string) error {
	if userID == "" {
		return ErrTokenNotOwned
	}
	return l.revoke(ctx, raw, userID)
}

func (l *Ledger) revoke(ctx context.Context, raw, owner string) error {
	claims, err := parse(raw, l.refreshKey, l.issuer, l.now, true)
	if err != nil {
		claims, err = parse(raw, l.accessKey, l.issuer, l.now, true)
		if err != nil {
			return err
		}
	}
	if owner != "" && claims.Subject != owner {
		return ErrTokenNotOwned
	}

	unlock := l.locks.Lock(claims.ID)
	defer unlock()

	expiresAt := l.now().Add(l.refreshTTL)
	if claims.ExpiresAt != nil && claims.Type == KindRefresh {
		expiresAt = claims.ExpiresAt.Time
	}
	l.tombstone(claims.ID, expiresAt)

	if err := l.store.Revoke(ctx, claims.ID); err != nil {
		metrics.TokenStoreFailures.WithLabelValues("revoke").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("jti", claims.ID).Msg("Failed to persist revocation")
	}
	metrics.TokensRevoked.WithLabelValues("single").Inc()

	l.audit(ctx, logstore.LevelInfo, "Refresh token revoked", "token_revoke", claims.Subject,
		logstore.Metadata{"jti": logstore.String(claims.ID)})
	return nil
}

// RevokeAll revokes every refresh family of userID and returns how many
// were revoked. In-memory revocation always happens; a store failure is
// returned after it.
func (l *Ledger) RevokeAll(ctx context.Context, userID string) (int, error) {
	jtis, storeErr := l.store.RevokeAllForUser(ctx, userID)

	l.mu.Lock()
	for jti, entry := range l.cache {
		if entry.userID == userID {
			jtis = append(jtis, jti)
			l.tombstones[jti] = entry.expiresAt
			delete(l.cache, jti)
		}
	}
	fallback := l.now().Add(l.refreshTTL)
	unique := make(map[string]struct{}, len(jtis))
	for _, jti := range jtis {
		unique[jti] = struct{}{}
		if _, ok := l.tombstones[jti]; !ok {
			l.tombstones[jti] = fallback
		}
	}
	size := len(l.cache)
	l.mu.Unlock()
	metrics.TokenCacheEntries.Set(float64(size))

	count := len(unique)
	metrics.TokensRevoked.WithLabelValues("user").Add(float64(count))
	l.audit(ctx, logstore.LevelWarn, "All refresh tokens revoked for user", "token_revoke_all", userID,
		logstore.Metadata{"count": logstore.Int(int64(count))})

	if storeErr != nil {
		metrics.TokenStoreFailures.WithLabelValues("revoke_all").Inc()
		return count, fmt.Errorf("revoke all for user in store: %w", storeErr)
	}
	return count, nil
}

// Sweep evicts expired cache entries and tombstones and deletes expired
// durable records. Expiry is enforced at verify time regardless.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	now := l.now()

	l.mu.Lock()
	evicted := 0
	for jti, entry := range l.cache {
		if !now.Before(entry.expiresAt) {
			delete(l.cache, jti)
			evicted++
		}
	}
	for jti, exp := range l.tombstones {
		if !now.Before(exp) {
			delete(l.tombstones, jti)
		}
	}
	size := len(l.cache)
	l.mu.Unlock()
	metrics.TokenCacheEntries.Set(float64(size))

	deleted, err := l.store.DeleteExpired(ctx, now)
	if err != nil {
		metrics.TokenStoreFailures.WithLabelValues("delete_expired").Inc()
		return evicted, fmt.Errorf("delete expired refresh records: %w", err)
	}
	if evicted > 0 || deleted > 0 {
		logging.Debug().Int("evicted", evicted).Int("deleted", deleted).Msg("Token sweep complete")
	}
	return evicted, nil
}

// Run sweeps on the configured interval until ctx is done.
func (l *Ledger) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := l.Sweep(ctx); err != nil {
				logging.Warn().Err(err).Msg("Token sweep failed")
			}
		}
	}
}

// CacheSize returns the number of cached refresh families.
func (l *Ledger) CacheSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
