// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Store persists the single lockdown config row.
type Store interface {
	// Load returns nil, nil when nothing was ever saved.
	Load(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg Config) error
}

// MemoryStore keeps the config in memory.
type MemoryStore struct {
	mu      sync.Mutex
	cfg     *Config
	failErr error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Fail makes Load and Save return err; nil restores normal behavior.
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Load returns the saved config.
func (s *MemoryStore) Load(_ context.Context) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	return s.cfg.Clone(), nil
}

// Save replaces the saved config.
func (s *MemoryStore) Save(_ context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.cfg = cfg.Clone()
	return nil
}

const configKey = "lockdown:config"

// BadgerStore keeps the config under a single BadgerDB key.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps a shared BadgerDB.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load reads the config. A value that does not decode is an error.
func (s *BadgerStore) Load(_ context.Context) (*Config, error) {
	var cfg *Config
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(configKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var c Config
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("decode lockdown config: %w", err)
			}
			cfg = &c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config.
func (s *BadgerStore) Save(_ context.Context, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode lockdown config: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(configKey), data)
	})
}
