// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workerstore defines the external worker data store
// collaborator hostfleet depends on but does not own: a narrow
// interface naming exactly the operations the supervisor needs,
// implemented elsewhere and injected at construction.
package workerstore

import "context"

// Status is a worker's lifecycle state as tracked by the external
// store. hostfleet only ever reads these and writes the terminal
// transitions listed on Store.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusSpawning     Status = "spawning"
	StatusStarting     Status = "starting"
	StatusWorking      Status = "working"
	StatusBlocked      Status = "blocked"
	StatusError        Status = "error"
	StatusTerminated   Status = "terminated"
)

// Worker is the subset of external worker state hostfleet needs.
type Worker struct {
	ID        string
	ProjectID string
	Status    Status
}

// TaskStatus mirrors the external store's task lifecycle states
// relevant to orphan cleanup.
type TaskStatus string

const (
	TaskDispatched TaskStatus = "dispatched"
	TaskError      TaskStatus = "error"
)

// Task is the subset of external task state the reaper needs to fail
// out dispatched work for a terminated worker.
type Task struct {
	ID     string
	Status TaskStatus
}

// Store is the external worker data store. hostfleet never writes
// worker fields other than the terminal status transitions performed
// here — it does not own worker lifecycle, only fleet placement.
type Store interface {
	GetWorker(ctx context.Context, id string) (Worker, error)
	GetTasksForWorker(ctx context.Context, workerID string, status TaskStatus) ([]Task, error)
	FailTask(ctx context.Context, taskID string) error
	ReleaseClaims(ctx context.Context, workerID string) error
	UpdateWorkerStatus(ctx context.Context, workerID string, status Status) error
}
