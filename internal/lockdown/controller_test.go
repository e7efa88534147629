// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/watchtower/internal/logstore"
)

type recordingAuditor struct {
	mu      sync.Mutex
	entries []logstore.Entry
}

func (a *recordingAuditor) Append(_ context.Context, e logstore.Entry) logstore.LogRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return logstore.LogRecord{Level: e.Level, Module: e.Module, Message: e.Message}
}

func (a *recordingAuditor) byAction(action string) []logstore.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []logstore.Entry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newTestController(t *testing.T, store Store, cfg ControllerConfig, opts ...Option) (*Controller, *recordingAuditor) {
	t.Helper()
	auditor := &recordingAuditor{}
	opts = append([]Option{WithAuditor(auditor)}, opts...)
	c, err := NewController(store, cfg, opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(c.Close)
	return c, auditor
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func boolPtr(b bool) *bool { return &b }

func TestController_InitiateDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	c, auditor := newTestController(t, store, DefaultControllerConfig())

	if c.IsActive() || c.CurrentConfig() != nil {
		t.Fatal("new controller must start Normal")
	}

	cfg, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if !cfg.IsActive || !cfg.AllowAdminAccess {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AffectedServices, []string{AllServices}) {
		t.Errorf("AffectedServices = %v", cfg.AffectedServices)
	}
	if cfg.Message != DefaultMessage(ReasonMaintenance) {
		t.Errorf("Message = %q", cfg.Message)
	}
	if !c.IsActive() {
		t.Error("controller should be locked")
	}

	saved, _ := store.Load(ctx)
	if saved == nil || !saved.IsActive || saved.Reason != ReasonMaintenance {
		t.Errorf("config not persisted: %+v", saved)
	}

	entries := auditor.byAction("lockdown_initiate")
	if len(entries) != 1 || entries[0].Level != logstore.LevelError || entries[0].Module != "security" {
		t.Errorf("initiate audit = %+v", entries)
	}
}

func TestController_InitiateValidation(t *testing.T) {
	t.Parallel()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(context.Background(), "  ", "admin1", Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("empty reason: got %v", err)
	}
	if _, err := c.Initiate(context.Background(), ReasonMaintenance, "admin1", Options{EstimatedDuration: -time.Second}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("negative duration: got %v", err)
	}
	if c.IsActive() {
		t.Error("failed initiate must not lock")
	}
}

func TestController_CustomReasonAndMessage(t *testing.T) {
	t.Parallel()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	cfg, err := c.Initiate(context.Background(), "vendor_outage", "admin1", Options{
		CustomMessage:    "Back at 14:00",
		AffectedServices: []string{"api", "ws"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Message != "Back at 14:00" || len(cfg.AffectedServices) != 2 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if DefaultMessage("vendor_outage") != defaultMessage {
		t.Error("unknown reasons use the generic message")
	}
}

func TestController_InitiateConflictLeavesConfigUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig(), WithClock(now))

	if _, err := c.Initiate(ctx, ReasonSecurityBreach, "admin1", Options{EstimatedDuration: time.Hour}); err != nil {
		t.Fatal(err)
	}
	before := c.CurrentConfig()

	mu.Lock()
	clock = clock.Add(time.Minute)
	mu.Unlock()

	_, err := c.Initiate(ctx, ReasonMaintenance, "admin2", Options{})
	if !errors.Is(err, ErrLockdownConflict) {
		t.Fatalf("got %v, want ErrLockdownConflict", err)
	}
	after := c.CurrentConfig()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("config changed:\nbefore %+v\nafter  %+v", before, after)
	}
	if !after.InitiatedAt.Equal(before.InitiatedAt) {
		t.Error("initiatedAt must be unchanged")
	}
}

func TestController_LiftWhenNormal(t *testing.T) {
	t.Parallel()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if err := c.Lift(context.Background(), "admin1"); !errors.Is(err, ErrLockdownNotActive) {
		t.Errorf("got %v, want ErrLockdownNotActive", err)
	}
}

func TestController_Lift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	c, auditor := newTestController(t, store, DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{EstimatedDuration: time.Hour}); err != nil {
		t.Fatal(err)
	}
	if err := c.Lift(ctx, "admin1"); err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if c.IsActive() || c.CurrentConfig() != nil {
		t.Error("controller should be Normal")
	}
	saved, _ := store.Load(ctx)
	if saved == nil || saved.IsActive {
		t.Errorf("durable config should be inactive: %+v", saved)
	}
	entries := auditor.byAction("lockdown_lift")
	if len(entries) != 1 || entries[0].Level != logstore.LevelInfo {
		t.Errorf("lift audit = %+v", entries)
	}
	if _, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{}); err != nil {
		t.Errorf("initiate after lift: %v", err)
	}
}

func TestController_AutoLift(t *testing.T) {
	t.Parallel()
	c, auditor := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(context.Background(), ReasonMaintenance, "admin1", Options{EstimatedDuration: 50 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return !c.IsActive() })

	entries := auditor.byAction("lockdown_lift")
	if len(entries) != 1 || entries[0].UserID != SystemActor {
		t.Errorf("auto-lift audit = %+v", entries)
	}
}

func TestController_LiftCancelsTimer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{EstimatedDuration: 50 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if err := c.Lift(ctx, "admin1"); err != nil {
		t.Fatal(err)
	}
	// A new open-ended lockdown must not be lifted by the old timer.
	if _, err := c.Initiate(ctx, ReasonSecurityBreach, "admin1", Options{}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if !c.IsActive() {
		t.Error("stale timer lifted a newer lockdown")
	}
}

func TestController_StaleGenerationIgnored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{}); err != nil {
		t.Fatal(err)
	}
	if err := c.liftGeneration(ctx, SystemActor, c.gen+1); !errors.Is(err, ErrLockdownNotActive) {
		t.Errorf("got %v, want ErrLockdownNotActive", err)
	}
	if !c.IsActive() {
		t.Error("lockdown must survive a stale lift")
	}
}

func TestController_CheckAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		allowAdmin bool
		req        AccessRequest
		allowed    bool
		bypass     Bypass
	}{
		{"admin with bypass", true, AccessRequest{UserID: "u1", Roles: []string{"ADMIN"}, IPAddress: "1.2.3.4"}, true, BypassAdmin},
		{"admin without bypass", false, AccessRequest{UserID: "u1", Roles: []string{"ADMIN"}, IPAddress: "1.2.3.4"}, false, BypassNone},
		{"regular user", true, AccessRequest{UserID: "u2", Roles: []string{"USER"}, IPAddress: "1.2.3.4"}, false, BypassNone},
		{"allow-listed address", false, AccessRequest{UserID: "u3", IPAddress: "10.1.2.3"}, true, BypassAllowList},
		{"allow-listed single ip", false, AccessRequest{IPAddress: "203.0.113.5"}, true, BypassAllowList},
		{"anonymous", true, AccessRequest{IPAddress: "198.51.100.1"}, false, BypassNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultControllerConfig()
			cfg.AllowList = []string{"10.0.0.0/8", "203.0.113.5"}
			c, _ := newTestController(t, NewMemoryStore(), cfg)

			if d := c.CheckAccess(ctx, tt.req); !d.Allowed {
				t.Fatal("Normal state must allow everything")
			}
			if _, err := c.Initiate(ctx, ReasonSecurityBreach, "admin1", Options{AllowAdminAccess: boolPtr(tt.allowAdmin)}); err != nil {
				t.Fatal(err)
			}

			d := c.CheckAccess(ctx, tt.req)
			if d.Allowed != tt.allowed || d.Bypass != tt.bypass {
				t.Errorf("decision = %+v, want allowed=%v bypass=%q", d, tt.allowed, tt.bypass)
			}
			if !d.Allowed && (d.Reason != ReasonSecurityBreach || d.Message == "") {
				t.Errorf("denial must carry reason and message: %+v", d)
			}
		})
	}
}

func TestController_CheckAccessAudits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, auditor := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonDDoSAttack, "admin1", Options{}); err != nil {
		t.Fatal(err)
	}
	c.CheckAccess(ctx, AccessRequest{UserID: "admin1", Roles: []string{"ADMIN"}, IPAddress: "1.1.1.1", Method: "GET", Path: "/api/v1/logs"})
	c.CheckAccess(ctx, AccessRequest{UserID: "u2", Roles: []string{"USER"}, IPAddress: "2.2.2.2", Method: "POST", Path: "/api/v1/auth/refresh"})

	bypass := auditor.byAction("lockdown_admin_bypass")
	if len(bypass) != 1 || bypass[0].Level != logstore.LevelWarn || bypass[0].Path != "/api/v1/logs" {
		t.Errorf("admin bypass audit = %+v", bypass)
	}
	denied := auditor.byAction("lockdown_access_denied")
	if len(denied) != 1 || denied[0].UserID != "u2" || denied[0].IPAddress != "2.2.2.2" || denied[0].Method != "POST" {
		t.Errorf("denial audit = %+v", denied)
	}
}

func TestController_EveryDenialAuditedByDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, auditor := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonSecurityBreach, "admin1", Options{}); err != nil {
		t.Fatal(err)
	}
	const attempts = 25
	for i := 0; i < attempts; i++ {
		if d := c.CheckAccess(ctx, AccessRequest{UserID: "u2", IPAddress: "9.9.9.9", Method: "GET", Path: "/api/v1/logs"}); d.Allowed {
			t.Fatal("denied caller was allowed")
		}
	}
	denied := auditor.byAction("lockdown_access_denied")
	if len(denied) != attempts {
		t.Fatalf("audited %d denials, want %d", len(denied), attempts)
	}
	for _, e := range denied {
		if _, ok := e.Metadata["suppressedSinceLast"]; ok {
			t.Fatal("no denial should be reported as suppressed")
		}
	}
}

// Throttling is opt-in through DenialAuditInterval.
func TestController_DenialAuditThrottled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	cfg := ControllerConfig{DenialAuditInterval: time.Second, DenialAuditBurst: 2}
	c, auditor := newTestController(t, NewMemoryStore(), cfg, WithClock(now))

	if _, err := c.Initiate(ctx, ReasonDDoSAttack, "admin1", Options{}); err != nil {
		t.Fatal(err)
	}
	req := AccessRequest{UserID: "u2", IPAddress: "9.9.9.9"}
	for i := 0; i < 10; i++ {
		if d := c.CheckAccess(ctx, req); d.Allowed {
			t.Fatal("throttling must never change the decision")
		}
	}
	if got := len(auditor.byAction("lockdown_access_denied")); got != 2 {
		t.Errorf("audited %d denials, want 2", got)
	}

	mu.Lock()
	clock = clock.Add(time.Second)
	mu.Unlock()
	c.CheckAccess(ctx, req)

	denied := auditor.byAction("lockdown_access_denied")
	if len(denied) != 3 {
		t.Fatalf("audited %d denials, want 3", len(denied))
	}
	if n := denied[2].Metadata["suppressedSinceLast"].Num(); n != 8 {
		t.Errorf("suppressedSinceLast = %v, want 8", n)
	}

	// Another address has its own budget.
	c.CheckAccess(ctx, AccessRequest{IPAddress: "8.8.8.8"})
	if got := len(auditor.byAction("lockdown_access_denied")); got != 4 {
		t.Errorf("audited %d denials, want 4", got)
	}
}

func TestController_RetryAfter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{EstimatedDuration: time.Hour}); err != nil {
		t.Fatal(err)
	}
	d := c.CheckAccess(ctx, AccessRequest{IPAddress: "1.2.3.4"})
	if d.RetryAfter <= 59*time.Minute || d.RetryAfter > time.Hour {
		t.Errorf("RetryAfter = %v", d.RetryAfter)
	}
}

func TestController_Restore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	t.Run("resumes with remaining time", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.Save(ctx, Config{
			IsActive:          true,
			Reason:            ReasonMaintenance,
			InitiatedBy:       "admin1",
			InitiatedAt:       now.Add(-10 * time.Minute),
			EstimatedDuration: time.Hour,
			AffectedServices:  []string{AllServices},
			AllowAdminAccess:  true,
			Message:           DefaultMessage(ReasonMaintenance),
		})
		c, auditor := newTestController(t, store, DefaultControllerConfig())
		c.Restore(ctx)

		if !c.IsActive() {
			t.Fatal("lockdown should be restored")
		}
		d := c.CheckAccess(ctx, AccessRequest{IPAddress: "1.2.3.4"})
		if d.RetryAfter > 51*time.Minute || d.RetryAfter < 49*time.Minute {
			t.Errorf("remaining = %v, want about 50m", d.RetryAfter)
		}
		if len(auditor.byAction("lockdown_restore")) != 1 {
			t.Error("expected a restore audit entry")
		}
	})

	t.Run("overdue lockdown lifts immediately", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.Save(ctx, Config{
			IsActive:          true,
			Reason:            ReasonMaintenance,
			InitiatedAt:       now.Add(-2 * time.Hour),
			EstimatedDuration: time.Hour,
		})
		c, _ := newTestController(t, store, DefaultControllerConfig())
		c.Restore(ctx)

		waitFor(t, 2*time.Second, func() bool { return !c.IsActive() })
		saved, _ := store.Load(ctx)
		if saved.IsActive {
			t.Error("durable config should be cleared")
		}
	})

	t.Run("open-ended lockdown stays", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.Save(ctx, Config{IsActive: true, Reason: ReasonDataBreach, InitiatedAt: now.Add(-48 * time.Hour)})
		c, _ := newTestController(t, store, DefaultControllerConfig())
		c.Restore(ctx)
		if !c.IsActive() {
			t.Error("lockdown without estimate must stay active")
		}
	})

	t.Run("inactive config", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.Save(ctx, Config{IsActive: false, Reason: ReasonMaintenance})
		c, _ := newTestController(t, store, DefaultControllerConfig())
		c.Restore(ctx)
		if c.IsActive() {
			t.Error("inactive config must not lock")
		}
	})

	t.Run("unreadable store assumes normal", func(t *testing.T) {
		store := NewMemoryStore()
		store.Fail(errors.New("corrupt"))
		c, _ := newTestController(t, store, DefaultControllerConfig())
		c.Restore(ctx)
		if c.IsActive() {
			t.Error("load failure must leave the system Normal")
		}
	})
}

func TestController_PersistenceFailureStillLocks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	store.Fail(errors.New("disk full"))
	c, _ := newTestController(t, store, DefaultControllerConfig())

	if _, err := c.Initiate(ctx, ReasonSecurityBreach, "admin1", Options{}); err != nil {
		t.Fatalf("Initiate must not fail on store errors: %v", err)
	}
	if !c.IsActive() {
		t.Error("lockdown should be active in memory")
	}
	if err := c.Lift(ctx, "admin1"); err != nil {
		t.Fatalf("Lift must not fail on store errors: %v", err)
	}
}

func TestController_ConcurrentInitiate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestController(t, NewMemoryStore(), DefaultControllerConfig())

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Initiate(ctx, ReasonMaintenance, "admin1", Options{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrLockdownConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("%d initiates succeeded, want 1", wins)
	}
}
