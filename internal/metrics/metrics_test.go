// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/lockdown/status", "200"))

	RecordAPIRequest("GET", "/api/v1/lockdown/status", 200, 3*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/lockdown/status", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordTokenVerifyFailure(t *testing.T) {
	before := testutil.ToFloat64(TokenVerifyFailures.WithLabelValues("refresh", "revoked"))
	RecordTokenVerifyFailure("refresh", "revoked")
	RecordTokenVerifyFailure("refresh", "revoked")
	after := testutil.ToFloat64(TokenVerifyFailures.WithLabelValues("refresh", "revoked"))
	if after-before != 2 {
		t.Errorf("expected +2, got %v", after-before)
	}
}

func TestSetLockdownActive(t *testing.T) {
	SetLockdownActive(true)
	if v := testutil.ToFloat64(LockdownActive); v != 1 {
		t.Errorf("expected 1, got %v", v)
	}
	SetLockdownActive(false)
	if v := testutil.ToFloat64(LockdownActive); v != 0 {
		t.Errorf("expected 0, got %v", v)
	}
}
