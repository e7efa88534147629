// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/watchtower/internal/logstore"
)

// InitiateLockdownRequest is the body of POST /lockdown/initiate.
type InitiateLockdownRequest struct {
	Reason              string   `json:"reason" validate:"required,reason_code"`
	EstimatedDurationMs int64    `json:"estimatedDurationMs" validate:"gte=0"`
	AffectedServices    []string `json:"affectedServices" validate:"omitempty,max=64,dive,required,max=128"`
	AllowAdminAccess    *bool    `json:"allowAdminAccess"`
	CustomMessage       string   `json:"customMessage" validate:"max=1024"`

	// RevokeUsers are signed out when the reason is a security incident.
	RevokeUsers []string `json:"revokeUsers" validate:"omitempty,max=1000,dive,required,max=256"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	DeviceID     string `json:"deviceId" validate:"max=256"`
}

// LogoutRequest is the body of POST /auth/logout. An empty body revokes
// the bearer token's own family.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogFilterRequest is the filter shape shared by the log endpoints. Dates
// are RFC 3339.
type LogFilterRequest struct {
	Level     string `json:"level" validate:"omitempty,log_level"`
	Module    string `json:"module" validate:"max=128"`
	UserID    string `json:"userId" validate:"max=256"`
	StartDate string `json:"startDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate   string `json:"endDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Search    string `json:"search" validate:"max=1024"`
}

// ListLogsRequest holds the query parameters of GET /logs.
type ListLogsRequest struct {
	LogFilterRequest
	Limit  int `validate:"min=1,max=10000"`
	Offset int `validate:"min=0"`
}

// SearchLogsRequest is the body of POST /logs/search.
type SearchLogsRequest struct {
	Query   string           `json:"query" validate:"required,max=1024"`
	Filters LogFilterRequest `json:"filters"`
}

// ExportLogsRequest is the body of POST /logs/export.
type ExportLogsRequest struct {
	Format  string           `json:"format" validate:"omitempty,oneof=csv json"`
	Filters LogFilterRequest `json:"filters"`
}

// Filter converts the validated request into a store filter.
func (f *LogFilterRequest) Filter() (logstore.Filter, error) {
	filter := logstore.Filter{
		Module: f.Module,
		UserID: f.UserID,
		Search: f.Search,
	}
	if f.Level != "" {
		level, err := logstore.ParseLevel(f.Level)
		if err != nil {
			return logstore.Filter{}, err
		}
		filter.Level = level
	}
	var err error
	if filter.StartDate, err = parseOptionalTime(f.StartDate); err != nil {
		return logstore.Filter{}, fmt.Errorf("startDate: %w", err)
	}
	if filter.EndDate, err = parseOptionalTime(f.EndDate); err != nil {
		return logstore.Filter{}, fmt.Errorf("endDate: %w", err)
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return logstore.Filter{}, fmt.Errorf("endDate is before startDate")
	}
	return filter, nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// listLogsFromQuery reads GET /logs parameters. Malformed integers are
// reported as errors rather than replaced with defaults.
func listLogsFromQuery(r *http.Request) (ListLogsRequest, error) {
	q := r.URL.Query()
	req := ListLogsRequest{
		LogFilterRequest: LogFilterRequest{
			Level:     q.Get("level"),
			Module:    q.Get("module"),
			UserID:    q.Get("userId"),
			StartDate: q.Get("startDate"),
			EndDate:   q.Get("endDate"),
			Search:    q.Get("search"),
		},
		Limit: logstore.DefaultPageLimit,
	}
	var err error
	if req.Limit, err = intParam(q.Get("limit"), logstore.DefaultPageLimit); err != nil {
		return req, fmt.Errorf("limit: %w", err)
	}
	if req.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		return req, fmt.Errorf("offset: %w", err)
	}
	return req, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
