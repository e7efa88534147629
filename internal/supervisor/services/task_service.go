// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package services

import (
	"context"
	"errors"
	"fmt"
)

// RunFunc is a blocking loop that returns when ctx is done, such as
// Pipeline.RunRetention or Ledger.Run.
type RunFunc func(ctx context.Context) error

// TaskService supervises a background loop.
type TaskService struct {
	name string
	run  RunFunc
}

// NewTaskService names run for supervisor logs.
func NewTaskService(name string, run RunFunc) *TaskService {
	return &TaskService{name: name, run: run}
}

// Serve implements suture.Service. A loop that exits before ctx is done is
// reported as a failure so the supervisor restarts it.
func (s *TaskService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s exited unexpectedly", s.name)
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

func (s *TaskService) String() string {
	return s.name
}
