// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"time"

	"github.com/goccy/go-json"
)

// Reason is the cause code of a lockdown. The constants have built-in
// messages; any other non-empty code is accepted.
type Reason string

const (
	ReasonSecurityBreach Reason = "security_breach"
	ReasonMaintenance    Reason = "maintenance"
	ReasonDDoSAttack     Reason = "ddos_attack"
	ReasonDataBreach     Reason = "data_breach"
)

const defaultMessage = "The system is temporarily unavailable. Please try again later."

var reasonMessages = map[Reason]string{
	ReasonSecurityBreach: "The system is temporarily locked due to a security incident. Please try again later.",
	ReasonMaintenance:    "The system is undergoing scheduled maintenance. Please try again later.",
	ReasonDDoSAttack:     "The system is temporarily unavailable due to unusual traffic. Please try again later.",
	ReasonDataBreach:     "The system is locked while a data incident is investigated. Please try again later.",
}

// DefaultMessage returns the user-facing text for reason.
func DefaultMessage(reason Reason) string {
	if msg, ok := reasonMessages[reason]; ok {
		return msg
	}
	return defaultMessage
}

// IsSecurityIncident reports whether reason warrants revoking sessions.
func (r Reason) IsSecurityIncident() bool {
	return r == ReasonSecurityBreach || r == ReasonDataBreach
}

// AllServices is the default AffectedServices tag.
const AllServices = "all"

// Config is the current lockdown. At most one exists; it is written whole
// on Initiate and only ever changed by Lift setting IsActive to false.
type Config struct {
	IsActive          bool          `json:"isActive"`
	Reason            Reason        `json:"reason"`
	InitiatedBy       string        `json:"initiatedBy"`
	InitiatedAt       time.Time     `json:"initiatedAt"`
	EstimatedDuration time.Duration `json:"-"`
	AffectedServices  []string      `json:"affectedServices"`
	AllowAdminAccess  bool          `json:"allowAdminAccess"`
	Message           string        `json:"message"`
}

type configJSON struct {
	IsActive            bool      `json:"isActive"`
	Reason              Reason    `json:"reason"`
	InitiatedBy         string    `json:"initiatedBy"`
	InitiatedAt         time.Time `json:"initiatedAt"`
	EstimatedDurationMs int64     `json:"estimatedDurationMs,omitempty"`
	AffectedServices    []string  `json:"affectedServices"`
	AllowAdminAccess    bool      `json:"allowAdminAccess"`
	Message             string    `json:"message"`
}

// MarshalJSON writes EstimatedDuration as estimatedDurationMs.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		IsActive:            c.IsActive,
		Reason:              c.Reason,
		InitiatedBy:         c.InitiatedBy,
		InitiatedAt:         c.InitiatedAt,
		EstimatedDurationMs: c.EstimatedDuration.Milliseconds(),
		AffectedServices:    c.AffectedServices,
		AllowAdminAccess:    c.AllowAdminAccess,
		Message:             c.Message,
	})
}

// UnmarshalJSON reads estimatedDurationMs into EstimatedDuration.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Config{
		IsActive:          raw.IsActive,
		Reason:            raw.Reason,
		InitiatedBy:       raw.InitiatedBy,
		InitiatedAt:       raw.InitiatedAt,
		EstimatedDuration: time.Duration(raw.EstimatedDurationMs) * time.Millisecond,
		AffectedServices:  raw.AffectedServices,
		AllowAdminAccess:  raw.AllowAdminAccess,
		Message:           raw.Message,
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.AffectedServices = append([]string(nil), c.AffectedServices...)
	return &out
}

// Remaining returns how long until the estimated end, clamped at zero.
// ok is false when no estimate was given.
func (c *Config) Remaining(now time.Time) (d time.Duration, ok bool) {
	if c.EstimatedDuration <= 0 {
		return 0, false
	}
	d = c.EstimatedDuration - now.Sub(c.InitiatedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Options are the optional parts of an Initiate call.
type Options struct {
	// EstimatedDuration arms an auto-lift when positive.
	EstimatedDuration time.Duration

	// AffectedServices defaults to ["all"].
	AffectedServices []string

	// AllowAdminAccess defaults to true when nil.
	AllowAdminAccess *bool

	// CustomMessage replaces the reason's default message.
	CustomMessage string
}

func buildConfig(reason Reason, initiatedBy string, opts *Options, now time.Time) Config {
	services := append([]string(nil), opts.AffectedServices...)
	if len(services) == 0 {
		services = []string{AllServices}
	}
	allowAdmin := true
	if opts.AllowAdminAccess != nil {
		allowAdmin = *opts.AllowAdminAccess
	}
	message := opts.CustomMessage
	if message == "" {
		message = DefaultMessage(reason)
	}
	return Config{
		IsActive:          true,
		Reason:            reason,
		InitiatedBy:       initiatedBy,
		InitiatedAt:       now,
		EstimatedDuration: opts.EstimatedDuration,
		AffectedServices:  services,
		AllowAdminAccess:  allowAdmin,
		Message:           message,
	}
}
