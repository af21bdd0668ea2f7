// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workerstoretest provides an in-memory workerstore.Store for
// tests: a map-backed stand-in that records calls so tests can assert
// on them.
package workerstoretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/hostfleet/internal/workerstore"
)

// Fake is an in-memory workerstore.Store.
type Fake struct {
	mu sync.Mutex

	Workers map[string]workerstore.Worker
	Tasks   map[string][]workerstore.Task // keyed by worker id

	FailedTasks    []string
	ReleasedClaims []string
	StatusUpdates  map[string]workerstore.Status
}

// NewFake returns an empty Fake store.
func NewFake() *Fake {
	return &Fake{
		Workers:       make(map[string]workerstore.Worker),
		Tasks:         make(map[string][]workerstore.Task),
		StatusUpdates: make(map[string]workerstore.Status),
	}
}

func (f *Fake) GetWorker(ctx context.Context, id string) (workerstore.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	worker, ok := f.Workers[id]
	if !ok {
		return workerstore.Worker{}, fmt.Errorf("fake workerstore: unknown worker %q", id)
	}
	return worker, nil
}

func (f *Fake) GetTasksForWorker(ctx context.Context, workerID string, status workerstore.TaskStatus) ([]workerstore.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []workerstore.Task
	for _, task := range f.Tasks[workerID] {
		if task.Status == status {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *Fake) FailTask(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailedTasks = append(f.FailedTasks, taskID)
	return nil
}

func (f *Fake) ReleaseClaims(ctx context.Context, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReleasedClaims = append(f.ReleasedClaims, workerID)
	return nil
}

func (f *Fake) UpdateWorkerStatus(ctx context.Context, workerID string, status workerstore.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusUpdates[workerID] = status
	if worker, ok := f.Workers[workerID]; ok {
		worker.Status = status
		f.Workers[workerID] = worker
	}
	return nil
}
