// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"context"
	"time"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/metrics"
)

// Sweep deletes durable records older than the retention horizon once.
// The in-memory ring is bounded by capacity and is not touched.
func (p *Pipeline) Sweep(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.cfg.RetentionDays)
	count, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		metrics.LogRetentionDeleted.Add(float64(count))
		logging.Info().
			Int64("deleted", count).
			Time("older_than", cutoff).
			Msg("Deleted expired log records")
	}
	return count, nil
}

// RunRetention sweeps every RetentionInterval until ctx is canceled.
func (p *Pipeline) RunRetention(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				logging.Error().Err(err).Msg("Log retention sweep failed")
			}
		}
	}
}
