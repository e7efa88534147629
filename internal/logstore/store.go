// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the durable history of log records. Results are ordered by
// timestamp descending, ties broken by ID descending.
type Store interface {
	Save(ctx context.Context, rec *LogRecord) error
	Query(ctx context.Context, filter Filter, page Page) ([]LogRecord, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// Stats aggregates records at or after since, per level. RecentCount
	// counts the subset at or after recentSince.
	Stats(ctx context.Context, since, recentSince time.Time) ([]LevelStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore keeps records in a slice. Intended for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	records []LogRecord
	maxLen  int
	saveErr error
}

// NewMemoryStore creates a memory store. maxLen <= 0 means unbounded.
func NewMemoryStore(maxLen int) *MemoryStore {
	return &MemoryStore{maxLen: maxLen}
}

// FailSaves makes subsequent Save calls return err (nil restores normal saves).
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Save appends a record.
func (s *MemoryStore) Save(_ context.Context, rec *LogRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, *rec)
	if s.maxLen > 0 && len(s.records) > s.maxLen {
		s.records = s.records[len(s.records)-s.maxLen:]
	}
	return nil
}

// sorted returns matching records newest first. Caller holds the read lock.
func (s *MemoryStore) sorted(filter *Filter) []LogRecord {
	out := make([]LogRecord, 0, len(s.records))
	for i := range s.records {
		if filter.Matches(&s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Query returns one page of matching records.
func (s *MemoryStore) Query(_ context.Context, filter Filter, page Page) ([]LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page = page.normalize()
	all := s.sorted(&filter)
	if page.Offset >= len(all) {
		return []LogRecord{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end], nil
}

// Count returns the number of matching records.
func (s *MemoryStore) Count(_ context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.records {
		if filter.Matches(&s.records[i]) {
			n++
		}
	}
	return n, nil
}

// Stats aggregates per level.
func (s *MemoryStore) Stats(_ context.Context, since, recentSince time.Time) ([]LevelStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLevel := make(map[Level]*LevelStats)
	users := make(map[Level]map[string]struct{})
	for i := range s.records {
		r := &s.records[i]
		if r.Timestamp.Before(since) {
			continue
		}
		st, ok := byLevel[r.Level]
		if !ok {
			st = &LevelStats{Level: r.Level}
			byLevel[r.Level] = st
			users[r.Level] = make(map[string]struct{})
		}
		st.Count++
		if !r.Timestamp.Before(recentSince) {
			st.RecentCount++
		}
		if r.UserID != "" {
			users[r.Level][r.UserID] = struct{}{}
		}
	}

	out := make([]LevelStats, 0, len(byLevel))
	for lvl, st := range byLevel {
		st.UniqueUsers = int64(len(users[lvl]))
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// DeleteOlderThan removes records with a timestamp before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
