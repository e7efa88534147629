// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package eventbus

import "time"

// Config holds event bus settings.
type Config struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// SubjectPrefix is prepended to the record level: "<prefix>.<level>".
	SubjectPrefix string `koanf:"subject_prefix"`

	// MinLevel drops records below this level before publishing.
	MinLevel string `koanf:"min_level"`

	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	ReconnectBuffer  int           `koanf:"reconnect_buffer"`
	EnableTrackMsgID bool          `koanf:"track_msg_id"` //nolint:revive // ID is correct per Go conventions
	JetStream        bool          `koanf:"jetstream"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the publish circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"` // Allowed in half-open state
	Interval         time.Duration `koanf:"interval"`     // Reset interval for counts
	Timeout          time.Duration `koanf:"timeout"`      // Time to stay open
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// DefaultConfig returns production defaults. The bus is disabled until a
// URL is configured.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		URL:              "nats://127.0.0.1:4222",
		SubjectPrefix:    "watchtower.logs",
		MinLevel:         "info",
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
		JetStream:        false,
		Breaker: BreakerConfig{
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}
