// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

type lockdownRequest struct {
	Reason    string   `json:"reason" validate:"required,reason_code"`
	Duration  int64    `json:"estimatedDurationMs" validate:"gte=0"`
	Services  []string `json:"affectedServices" validate:"omitempty,max=32,dive,min=1,max=64"`
	AllowList []string `json:"allowList" validate:"omitempty,dive,ip_or_cidr"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required,max=256"`
	Level string `json:"level" validate:"omitempty,log_level"`
	Limit int    `json:"limit" validate:"min=0,max=1000"`
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input interface{}
	}{
		{"lockdown minimal", &lockdownRequest{Reason: "maintenance"}},
		{"lockdown custom reason", &lockdownRequest{Reason: "credential_stuffing", Duration: 60000}},
		{"allow list", &lockdownRequest{Reason: "ddos_attack", AllowList: []string{"10.0.0.1", "192.168.0.0/16", "::1"}}},
		{"search", &searchRequest{Query: "login", Level: "warning", Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(tt.input); err != nil {
				t.Errorf("ValidateStruct() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{"missing reason", &lockdownRequest{}, "reason", "required", "reason is required"},
		{"bad reason", &lockdownRequest{Reason: "Not A Code"}, "reason", "reason_code", "lowercase snake_case"},
		{"negative duration", &lockdownRequest{Reason: "maintenance", Duration: -1}, "estimatedDurationMs", "gte", "greater than or equal to 0"},
		{"bad ip", &lockdownRequest{Reason: "maintenance", AllowList: []string{"10.0.0.300"}}, "allowList[0]", "ip_or_cidr", "IP address or CIDR"},
		{"bad level", &searchRequest{Query: "x", Level: "fatal"}, "level", "log_level", "one of"},
		{"query too long", &searchRequest{Query: strings.Repeat("q", 257)}, "query", "max", "at most 256 characters"},
		{"limit too high", &searchRequest{Query: "x", Limit: 1001}, "limit", "max", "at most 1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	t.Run("single", func(t *testing.T) {
		apiErr := ValidateStruct(&lockdownRequest{}).ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q", apiErr.Code)
		}
		if apiErr.Details["field"] != "reason" {
			t.Errorf("Details = %v", apiErr.Details)
		}
	})

	t.Run("multiple", func(t *testing.T) {
		apiErr := ValidateStruct(&searchRequest{Level: "nope", Limit: -1}).ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 3 {
			t.Fatalf("expected 3 field errors, got %v", apiErr.Details)
		}
		if !strings.Contains(apiErr.Message, "query:") {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("empty", func(t *testing.T) {
		apiErr := (&RequestValidationError{}).ToAPIError()
		if apiErr.Message != "Validation failed" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})
}
