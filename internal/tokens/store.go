// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package tokens

import (
	"context"
	"sync"
	"time"
)

// RefreshRecord is the durable record of one refresh token family. The
// token itself is never stored, only its SHA-256 hash.
type RefreshRecord struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId,omitempty"`
	TokenHash string    `json:"tokenHash"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked"`
	RevokedAt time.Time `json:"revokedAt,omitempty"`
}

// Store persists refresh records.
type Store interface {
	// Create writes a new record.
	Create(ctx context.Context, rec RefreshRecord) error

	// Get returns ErrRecordNotFound for unknown jtis.
	Get(ctx context.Context, jti string) (RefreshRecord, error)

	// Revoke marks a record revoked. Unknown or already revoked jtis are
	// not an error.
	Revoke(ctx context.Context, jti string) error

	// Rotate revokes oldJTI and creates next in one step, or does neither.
	// It returns ErrTokenRevoked when the old record is missing, revoked,
	// or does not match oldHash.
	Rotate(ctx context.Context, oldJTI, oldHash string, next RefreshRecord) error

	// RevokeAllForUser revokes every live record of userID and returns
	// the jtis it revoked.
	RevokeAllForUser(ctx context.Context, userID string) ([]string, error)

	// DeleteExpired removes records that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]RefreshRecord
	failErr error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]RefreshRecord)}
}

// Fail makes every subsequent operation return err; nil restores normal
// behavior.
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Create writes a new record.
func (s *MemoryStore) Create(_ context.Context, rec RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records[rec.JTI] = rec
	return nil
}

// Get returns a record by jti.
func (s *MemoryStore) Get(_ context.Context, jti string) (RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return RefreshRecord{}, s.failErr
	}
	rec, ok := s.records[jti]
	if !ok {
		return RefreshRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

// Revoke marks a record revoked.
func (s *MemoryStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	rec, ok := s.records[jti]
	if !ok || rec.Revoked {
		return nil
	}
	rec.Revoked = true
	rec.RevokedAt = time.Now()
	s.records[jti] = rec
	return nil
}

// Rotate revokes the old record and creates next atomically.
func (s *MemoryStore) Rotate(_ context.Context, oldJTI, oldHash string, next RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	old, ok := s.records[oldJTI]
	if !ok || old.Revoked || old.TokenHash != oldHash {
		return ErrTokenRevoked
	}
	old.Revoked = true
	old.RevokedAt = time.Now()
	s.records[oldJTI] = old
	s.records[next.JTI] = next
	return nil
}

// RevokeAllForUser revokes every live record of userID.
func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var revoked []string
	now := time.Now()
	for jti, rec := range s.records {
		if rec.UserID != userID || rec.Revoked {
			continue
		}
		rec.Revoked = true
		rec.RevokedAt = now
		s.records[jti] = rec
		revoked = append(revoked, jti)
	}
	return revoked, nil
}

// DeleteExpired removes expired records.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	count := 0
	for jti, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, jti)
			count++
		}
	}
	return count, nil
}
