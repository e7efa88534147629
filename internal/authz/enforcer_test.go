// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/watchtower/internal/auth"
)

func setupEnforcer(t *testing.T, cfg Config) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(cfg)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEnforce_DefaultPolicy(t *testing.T) {
	t.Parallel()

	e := setupEnforcer(t, DefaultConfig())

	tests := []struct {
		role, path, method string
		want               bool
	}{
		{RoleAdmin, "/api/v1/lockdown/initiate", http.MethodPost, true},
		{RoleAdmin, "/api/v1/lockdown/lift", http.MethodPost, true},
		{RoleAdmin, "/api/v1/logs", http.MethodGet, true},
		{RoleAdmin, "/api/v1/logs/export", http.MethodPost, true},
		{RoleAdmin, "/api/v1/auth/revoke-all/user-42", http.MethodPost, true},
		{RoleAdmin, "/api/v1/auth/logout", http.MethodPost, true},
		{RoleAdmin, "/api/v1/logs", http.MethodDelete, false},
		{RoleUser, "/api/v1/auth/logout", http.MethodPost, true},
		{RoleUser, "/api/v1/lockdown/initiate", http.MethodPost, false},
		{RoleUser, "/api/v1/logs", http.MethodGet, false},
		{RoleUser, "/api/v1/auth/revoke-all/user-42", http.MethodPost, false},
		{"GUEST", "/api/v1/auth/logout", http.MethodPost, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.method+" "+tt.path, func(t *testing.T) {
			got, err := e.Enforce(tt.role, tt.path, tt.method)
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tt.role, tt.path, tt.method, got, tt.want)
			}
		})
	}
}

func TestEnforceRoles(t *testing.T) {
	t.Parallel()

	e := setupEnforcer(t, Config{})
	ok, err := e.EnforceRoles([]string{"GUEST", RoleAdmin}, "/api/v1/logs/stats", http.MethodGet)
	if err != nil || !ok {
		t.Errorf("EnforceRoles() = %v, %v; want true", ok, err)
	}
	ok, err = e.EnforceRoles(nil, "/api/v1/logs/stats", http.MethodGet)
	if err != nil || ok {
		t.Errorf("EnforceRoles(nil) = %v, %v; want false", ok, err)
	}
}

func TestNewEnforcer_ExtraPolicy(t *testing.T) {
	t.Parallel()

	e := setupEnforcer(t, Config{ExtraPolicy: "p, AUDITOR, /api/v1/logs, GET\n# comment\n"})
	ok, err := e.Enforce("AUDITOR", "/api/v1/logs", http.MethodGet)
	if err != nil || !ok {
		t.Errorf("AUDITOR should read logs: %v, %v", ok, err)
	}

	if _, err := NewEnforcer(Config{ExtraPolicy: "p, broken"}); err == nil {
		t.Error("expected error for malformed policy line")
	}
}

func TestEnforcer_CacheInvalidatedOnPolicyChange(t *testing.T) {
	t.Parallel()

	e := setupEnforcer(t, Config{CacheEnabled: true, CacheTTL: time.Minute})

	if ok, _ := e.Enforce(RoleUser, "/api/v1/logs", http.MethodGet); ok {
		t.Fatal("USER should not read logs by default")
	}
	if e.cache.len() != 1 {
		t.Fatalf("expected one cached decision, got %d", e.cache.len())
	}

	if _, err := e.AddPolicy(RoleUser, "/api/v1/logs", "GET"); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	if ok, _ := e.Enforce(RoleUser, "/api/v1/logs", http.MethodGet); !ok {
		t.Error("cached deny survived policy change")
	}

	if _, err := e.RemovePolicy(RoleUser, "/api/v1/logs", "GET"); err != nil {
		t.Fatalf("RemovePolicy: %v", err)
	}
	if ok, _ := e.Enforce(RoleUser, "/api/v1/logs", http.MethodGet); ok {
		t.Error("cached allow survived policy removal")
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	e := setupEnforcer(t, DefaultConfig())
	handler := Authorize(e, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		subject *auth.Subject
		want    int
	}{
		{"admin", &auth.Subject{ID: "a", Roles: []string{RoleAdmin}}, http.StatusNoContent},
		{"user", &auth.Subject{ID: "u", Roles: []string{RoleUser}}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/lockdown/initiate", nil)
			if tt.subject != nil {
				r = r.WithContext(auth.WithSubject(r.Context(), tt.subject))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
