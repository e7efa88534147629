// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logging

import (
	"net/http"
	"strings"
)

// RedactedValue replaces secrets in stored or logged data.
const RedactedValue = "[REDACTED]"

// sensitiveKeyFragments match case-insensitively anywhere in a key.
var sensitiveKeyFragments = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"key",
	"credit_card",
	"creditcard",
	"authorization",
	"cookie",
	"session",
	"bearer",
}

// IsSensitiveKey reports whether a field name is likely to hold a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// SanitizeToken masks a token, keeping the first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiJ9.e30.xyz" -> "eyJh....xyz"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeEmail masks the local part of an address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

// SanitizeValue redacts a value based on its key and masks email-like values.
func SanitizeValue(key, value string) string {
	if IsSensitiveKey(key) {
		return RedactedValue
	}
	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}
	return value
}

// SanitizeHeaders flattens request headers into a redacted map.
// Multi-valued headers are joined with ", ".
func SanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = SanitizeValue(k, truncateString(strings.Join(vs, ", "), 256))
	}
	return out
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
