// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

func blockingLoop(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestTaskService(t *testing.T) {
	var _ suture.Service = (*TaskService)(nil)

	tests := []struct {
		name    string
		run     RunFunc
		cancel  bool
		wantErr string
	}{
		{"cancellation is a clean stop", blockingLoop, true, "context canceled"},
		{"early nil return is a failure", func(context.Context) error { return nil }, false, "exited unexpectedly"},
		{"loop error is wrapped", func(context.Context) error { return errors.New("disk full") }, false, "log-retention: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTaskService("log-retention", tt.run)
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			} else {
				defer cancel()
			}
			err := svc.Serve(ctx)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Serve() = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTaskService_String(t *testing.T) {
	if got := NewTaskService("token-sweep", blockingLoop).String(); got != "token-sweep" {
		t.Errorf("String() = %q", got)
	}
}

func TestTaskService_RestartedBySupervisor(t *testing.T) {
	var starts atomic.Int32
	svc := NewTaskService("flaky", func(ctx context.Context) error {
		if starts.Add(1) < 3 {
			return errors.New("transient")
		}
		return blockingLoop(ctx)
	})

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	errCh := sup.ServeBackground(ctx)

	deadline := time.After(time.Second)
	for starts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 starts, got %d", starts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-errCh
}
