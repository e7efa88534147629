// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package tokens

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	recordPrefix    = "rt:"
	userIndexPrefix = "rtu:"

	// expiryGrace keeps revoked records around a little past expiry so a
	// late verify still reports the family as revoked.
	expiryGrace = time.Hour
)

// BadgerStore persists refresh records in BadgerDB.
//
// Keys:
//
//	rt:<jti>                     JSON RefreshRecord
//	rtu:<hex(userID)>:<jti>      empty, per-user index for RevokeAllForUser
//
// Every key carries a TTL of the record's expiry plus a grace period.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps a shared BadgerDB.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func recordKey(jti string) []byte {
	return []byte(recordPrefix + jti)
}

func userPrefix(userID string) []byte {
	return []byte(userIndexPrefix + hex.EncodeToString([]byte(userID)) + ":")
}

func userIndexKey(userID, jti string) []byte {
	return append(userPrefix(userID), []byte(jti)...)
}

func ttlFor(rec *RefreshRecord) time.Duration {
	ttl := time.Until(rec.ExpiresAt) + expiryGrace
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func putRecord(txn *badger.Txn, rec *RefreshRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal refresh record: %w", err)
	}
	ttl := ttlFor(rec)
	if err := txn.SetEntry(badger.NewEntry(recordKey(rec.JTI), data).WithTTL(ttl)); err != nil {
		return err
	}
	return txn.SetEntry(badger.NewEntry(userIndexKey(rec.UserID, rec.JTI), nil).WithTTL(ttl))
}

func getRecord(txn *badger.Txn, jti string) (RefreshRecord, error) {
	var rec RefreshRecord
	item, err := txn.Get(recordKey(jti))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, ErrRecordNotFound
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}

// Create writes a new record and its user index entry.
func (s *BadgerStore) Create(_ context.Context, rec RefreshRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putRecord(txn, &rec)
	})
}

// Get returns a record by jti.
func (s *BadgerStore) Get(_ context.Context, jti string) (RefreshRecord, error) {
	var rec RefreshRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, jti)
		return err
	})
	return rec, err
}

// Revoke marks a record revoked.
func (s *BadgerStore) Revoke(_ context.Context, jti string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, jti)
		if err != nil {
			return err
		}
		if rec.Revoked {
			return nil
		}
		rec.Revoked = true
		rec.RevokedAt = time.Now()
		return putRecord(txn, &rec)
	})
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	return err
}

// Rotate revokes the old record and writes next in a single transaction.
// A concurrent transaction touching the same record makes this one fail
// with ErrTokenRevoked.
func (s *BadgerStore) Rotate(_ context.Context, oldJTI, oldHash string, next RefreshRecord) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		old, err := getRecord(txn, oldJTI)
		if errors.Is(err, ErrRecordNotFound) {
			return ErrTokenRevoked
		}
		if err != nil {
			return err
		}
		if old.Revoked || old.TokenHash != oldHash {
			return ErrTokenRevoked
		}
		old.Revoked = true
		old.RevokedAt = time.Now()
		if err := putRecord(txn, &old); err != nil {
			return err
		}
		return putRecord(txn, &next)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrTokenRevoked
	}
	return err
}

// RevokeAllForUser revokes every live record indexed under userID.
func (s *BadgerStore) RevokeAllForUser(_ context.Context, userID string) ([]string, error) {
	var revoked []string
	prefix := userPrefix(userID)

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var jtis []string
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			jtis = append(jtis, string(bytes.TrimPrefix(key, prefix)))
		}
		it.Close()

		now := time.Now()
		for _, jti := range jtis {
			rec, err := getRecord(txn, jti)
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if rec.Revoked {
				continue
			}
			rec.Revoked = true
			rec.RevokedAt = now
			if err := putRecord(txn, &rec); err != nil {
				return err
			}
			revoked = append(revoked, jti)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// DeleteExpired removes expired records and their index entries. Badger
// also drops them on its own once the TTL passes.
func (s *BadgerStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)

		var expired []RefreshRecord
		for it.Rewind(); it.Valid(); it.Next() {
			var rec RefreshRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			if rec.ExpiresAt.Before(now) {
				expired = append(expired, rec)
			}
		}
		it.Close()

		for i := range expired {
			if err := txn.Delete(recordKey(expired[i].JTI)); err != nil {
				return err
			}
			if err := txn.Delete(userIndexKey(expired[i].UserID, expired[i].JTI)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}
