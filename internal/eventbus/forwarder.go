// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package eventbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/metrics"
)

var levelRank = map[logstore.Level]int{
	logstore.LevelDebug: 0,
	logstore.LevelInfo:  1,
	logstore.LevelWarn:  2,
	logstore.LevelError: 3,
}

// LogForwarder publishes persisted log records to the bus. It implements
// logstore.Forwarder.
type LogForwarder struct {
	pub      *Publisher
	prefix   string
	minLevel logstore.Level
}

// NewLogForwarder builds a forwarder publishing to "<prefix>.<level>".
func NewLogForwarder(pub *Publisher, cfg Config) (*LogForwarder, error) {
	minLevel := logstore.LevelDebug
	if cfg.MinLevel != "" {
		l, err := logstore.ParseLevel(cfg.MinLevel)
		if err != nil {
			return nil, err
		}
		minLevel = l
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &LogForwarder{pub: pub, prefix: prefix, minLevel: minLevel}, nil
}

// Topic returns the subject a record at level is published on.
func (f *LogForwarder) Topic(level logstore.Level) string {
	return f.prefix + "." + string(level)
}

// Forward publishes rec unless it is below the minimum level.
func (f *LogForwarder) Forward(ctx context.Context, rec logstore.LogRecord) error {
	if levelRank[rec.Level] < levelRank[f.minLevel] {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize log record: %w", err)
	}

	msg := message.NewMessage(rec.ID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("level", string(rec.Level))
	msg.Metadata.Set("module", rec.Module)
	if rec.UserID != "" {
		msg.Metadata.Set("user_id", rec.UserID)
	}

	if err := f.pub.Publish(f.Topic(rec.Level), msg); err != nil {
		return fmt.Errorf("publish log record %s: %w", rec.ID, err)
	}
	metrics.EventsPublished.Inc()
	return nil
}
