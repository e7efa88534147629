// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/watchtower/internal/config"
	"github.com/tomtom215/watchtower/internal/eventbus"
	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
)

// openBadger opens the key-value store holding refresh records and the
// lockdown row. Writes are synced so a lockdown survives a crash.
func openBadger(cfg config.StorageConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		logging.Warn().Msg("BadgerDB is in memory; sessions and lockdown state are lost on restart")
	} else {
		opts = badger.DefaultOptions(cfg.BadgerPath).WithSyncWrites(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", cfg.BadgerPath, err)
	}
	return db, nil
}

// openLogStore returns the durable log store. With no DuckDB path, history
// is kept in memory. The returned *sql.DB is nil in that case.
func openLogStore(ctx context.Context, cfg config.StorageConfig) (logstore.Store, *sql.DB, error) {
	if cfg.DuckDBPath == "" {
		logging.Warn().Msg("DUCKDB_PATH is empty; log history is kept in memory")
		return logstore.NewMemoryStore(0), nil, nil
	}

	db, err := logstore.OpenDuckDB(cfg.DuckDBPath)
	if err != nil {
		return nil, nil, err
	}
	store := logstore.NewDuckDBStore(db)
	if err := store.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create system_logs: %w", err)
	}
	logging.Info().Str("path", cfg.DuckDBPath).Msg("DuckDB log store ready")
	return store, db, nil
}

// initEventBus connects the NATS publisher when enabled. A connection
// failure is not fatal; the pipeline runs without forwarding.
func initEventBus(cfg eventbus.Config) (*eventbus.Publisher, logstore.Forwarder) {
	if !cfg.Enabled {
		logging.Info().Msg("NATS forwarding disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	pub, err := eventbus.NewNATSPublisher(cfg, watermill.NewSlogLogger(logging.NewSlogLogger()))
	if err != nil {
		logging.Warn().Err(err).Str("url", cfg.URL).Msg("Failed to connect to NATS, log forwarding disabled")
		return nil, nil
	}
	fwd, err := eventbus.NewLogForwarder(pub, cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("Invalid NATS forwarding config, log forwarding disabled")
		_ = pub.Close()
		return nil, nil
	}
	logging.Info().
		Str("url", cfg.URL).
		Str("subject_prefix", cfg.SubjectPrefix).
		Str("min_level", cfg.MinLevel).
		Msg("NATS log forwarding enabled")
	return pub, fwd
}
