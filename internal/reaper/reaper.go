// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reaper implements auto-heal: finding workers orphaned by a
// dead host and either rebinding them to a healthy one or terminating
// them. Individual worker failures are logged and do not abort the
// rest of the cycle — one bad entry never blocks the batch.
package reaper

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/hostfleet/internal/placement"
	"github.com/bureau-foundation/hostfleet/internal/registry"
	"github.com/bureau-foundation/hostfleet/internal/workerstore"
)

// Action is what the reaper did with one orphaned worker.
type Action string

const (
	ActionRebind    Action = "rebind"
	ActionTerminate Action = "terminate"
	ActionSkip      Action = "skip"
)

// WorkerResult is the outcome for one orphaned worker.
type WorkerResult struct {
	WorkerID string
	HostID   string // the dead host it was bound to
	Action   Action
	Success  bool
	Reason   string // set on failure, e.g. "no_healthy_host"
}

// Result summarizes one reaper cycle.
type Result struct {
	OrphansFound int
	Healed       int
	Failed       int
	Results      []WorkerResult
}

// Reaper heals workers orphaned by dead hosts.
type Reaper struct {
	registry *registry.Registry
	store    workerstore.Store
	logger   *slog.Logger
}

// New returns a Reaper.
func New(reg *registry.Registry, store workerstore.Store, logger *slog.Logger) *Reaper {
	return &Reaper{registry: reg, store: store, logger: logger}
}

// deadStatuses are host states that make their bound workers orphans.
var deadStatuses = map[registry.Status]bool{
	registry.StatusStale:      true,
	registry.StatusError:      true,
	registry.StatusTerminated: true,
}

// classify maps a worker's external status to the action the reaper
// should take, conservative by default (unknown statuses terminate
// rather than leaving a worker stranded indefinitely).
func classify(status workerstore.Status) Action {
	switch status {
	case workerstore.StatusIdle, workerstore.StatusInitializing, workerstore.StatusSpawning, workerstore.StatusStarting:
		return ActionRebind
	case workerstore.StatusWorking, workerstore.StatusBlocked:
		return ActionTerminate
	case workerstore.StatusError, workerstore.StatusTerminated:
		return ActionSkip
	default:
		return ActionTerminate
	}
}

// Run scans every dead host's bound workers, classifies each as an
// orphan action, and executes it. Returns a summary; emits no events
// itself — callers (the supervisor) own event emission so the cycle
// produces exactly one orphans_healed event regardless of how many
// workers it touched.
func (r *Reaper) Run(ctx context.Context) Result {
	var result Result

	for _, status := range []registry.Status{registry.StatusStale, registry.StatusError, registry.StatusTerminated} {
		for _, host := range r.registry.GetByStatus(status) {
			for workerID := range host.Workers {
				result.OrphansFound++
				wr := r.healOne(ctx, host, workerID)
				result.Results = append(result.Results, wr)
				if wr.Success {
					result.Healed++
				} else {
					result.Failed++
				}
			}
		}
	}

	return result
}

func (r *Reaper) healOne(ctx context.Context, deadHost registry.Host, workerID string) WorkerResult {
	worker, err := r.store.GetWorker(ctx, workerID)
	if err != nil {
		r.logger.Warn("reaper: failed to read worker, terminating conservatively",
			"worker_id", workerID, "host_id", deadHost.ID, "error", err)
		return r.terminate(ctx, deadHost.ID, workerID)
	}

	switch classify(worker.Status) {
	case ActionRebind:
		return r.rebind(ctx, deadHost, workerID, worker.ProjectID)
	case ActionTerminate:
		return r.terminate(ctx, deadHost.ID, workerID)
	default: // ActionSkip
		if err := r.registry.Unbind(deadHost.ID, workerID); err != nil {
			r.logger.Warn("reaper: unbind failed during skip", "worker_id", workerID, "error", err)
		}
		return WorkerResult{WorkerID: workerID, HostID: deadHost.ID, Action: ActionSkip, Success: true}
	}
}

func (r *Reaper) rebind(ctx context.Context, deadHost registry.Host, workerID, projectID string) WorkerResult {
	candidates := r.registry.GetByStatus(registry.StatusActive)
	selection := placement.Select(candidates, projectID)

	if selection.Outcome != placement.OutcomeSelected || selection.HostID == deadHost.ID {
		return WorkerResult{WorkerID: workerID, HostID: deadHost.ID, Action: ActionRebind, Success: false, Reason: "no_healthy_host"}
	}

	if err := r.registry.Unbind(deadHost.ID, workerID); err != nil {
		r.logger.Warn("reaper: unbind failed during rebind", "worker_id", workerID, "error", err)
		return WorkerResult{WorkerID: workerID, HostID: deadHost.ID, Action: ActionRebind, Success: false, Reason: err.Error()}
	}
	if err := r.registry.Bind(selection.HostID, workerID, projectID); err != nil {
		r.logger.Warn("reaper: bind failed during rebind", "worker_id", workerID, "error", err)
		return WorkerResult{WorkerID: workerID, HostID: deadHost.ID, Action: ActionRebind, Success: false, Reason: err.Error()}
	}

	r.logger.Info("orphan rebound", "worker_id", workerID, "from_host", deadHost.ID, "to_host", selection.HostID)
	return WorkerResult{WorkerID: workerID, HostID: deadHost.ID, Action: ActionRebind, Success: true}
}

func (r *Reaper) terminate(ctx context.Context, deadHostID, workerID string) WorkerResult {
	tasks, err := r.store.GetTasksForWorker(ctx, workerID, workerstore.TaskDispatched)
	if err != nil {
		r.logger.Warn("reaper: failed to list dispatched tasks", "worker_id", workerID, "error", err)
	}
	for _, task := range tasks {
		if err := r.store.FailTask(ctx, task.ID); err != nil {
			r.logger.Warn("reaper: failed to fail task", "task_id", task.ID, "worker_id", workerID, "error", err)
		}
	}

	if err := r.store.ReleaseClaims(ctx, workerID); err != nil {
		r.logger.Warn("reaper: failed to release claims", "worker_id", workerID, "error", err)
	}

	if err := r.registry.Unbind(deadHostID, workerID); err != nil {
		r.logger.Warn("reaper: unbind failed during terminate", "worker_id", workerID, "error", err)
	}

	if err := r.store.UpdateWorkerStatus(ctx, workerID, workerstore.StatusTerminated); err != nil {
		r.logger.Warn("reaper: failed to mark worker terminated", "worker_id", workerID, "error", err)
		return WorkerResult{WorkerID: workerID, HostID: deadHostID, Action: ActionTerminate, Success: false, Reason: err.Error()}
	}

	r.logger.Info("orphan terminated", "worker_id", workerID, "host_id", deadHostID)
	return WorkerResult{WorkerID: workerID, HostID: deadHostID, Action: ActionTerminate, Success: true}
}
