// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Level is the severity of a log record.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// ParseLevel parses a level name. "warning" is accepted for warn.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "warning" {
		l = LevelWarn
	}
	if !l.Valid() {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// Entry is the input to Append. ID and timestamp are assigned by the pipeline.
type Entry struct {
	Level          Level
	Module         string
	Message        string
	Action         string
	UserID         string
	IPAddress      string
	UserAgent      string
	Method         string
	Path           string
	StatusCode     int
	ResponseTimeMs int64
	Metadata       Metadata
}

// LogRecord is an immutable stored log event.
type LogRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Level          Level     `json:"level"`
	Module         string    `json:"module"`
	Message        string    `json:"message"`
	Action         string    `json:"action,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	Method         string    `json:"method,omitempty"`
	Path           string    `json:"path,omitempty"`
	StatusCode     int       `json:"statusCode,omitempty"`
	ResponseTimeMs int64     `json:"responseTimeMs,omitempty"`
	Metadata       Metadata  `json:"metadata,omitempty"`
}

var idSeq atomic.Uint64

// newRecordID returns log_<unixmilli>_<seq>_<rand>. The zero-padded sequence
// keeps IDs minted in the same millisecond in append order when compared as
// strings.
func newRecordID(now time.Time) string {
	seq := idSeq.Add(1) % 1_000_000_000
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("log_%d_%09d", now.UnixMilli(), seq)
	}
	return fmt.Sprintf("log_%d_%09d_%s", now.UnixMilli(), seq, hex.EncodeToString(b))
}

// Filter selects records. Zero-valued fields do not constrain.
type Filter struct {
	Level     Level      `json:"level,omitempty"`
	Module    string     `json:"module,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	// Search is a case-insensitive substring match on message and metadata.
	Search string `json:"search,omitempty"`
}

// Matches evaluates the filter against a record in memory.
func (f *Filter) Matches(r *LogRecord) bool {
	if f.Level != "" && r.Level != f.Level {
		return false
	}
	if f.Module != "" && r.Module != f.Module {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.StartDate != nil && r.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.Timestamp.After(*f.EndDate) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Message), needle) &&
			!strings.Contains(strings.ToLower(r.Metadata.String()), needle) {
			return false
		}
	}
	return true
}

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 10000
	SearchLimit      = 1000
	ExportLimit      = 10000
)

// Page is a limit/offset window over a timestamp-descending result.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Result is a page of records with the filter-wide total.
type Result struct {
	Logs  []LogRecord `json:"logs"`
	Total int64       `json:"total"`
}

// LevelStats aggregates one level over the stats window.
type LevelStats struct {
	Level       Level `json:"level"`
	Count       int64 `json:"count"`
	UniqueUsers int64 `json:"uniqueUsers"`
	RecentCount int64 `json:"recentCount"`
}
