// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package redistribute migrates idle workers off overloaded-but-live
// hosts onto better-scoring ones: compute a plan first (scoring every
// candidate), then execute it, re-checking each item's state
// immediately before acting since the plan may have gone stale by the
// time execution reaches it.
package redistribute

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bureau-foundation/hostfleet/internal/health"
	"github.com/bureau-foundation/hostfleet/internal/placement"
	"github.com/bureau-foundation/hostfleet/internal/registry"
	"github.com/bureau-foundation/hostfleet/internal/workerstore"
)

// OverloadedWorkerThreshold: a host with at least this many workers is
// overloaded regardless of health, on top of the degraded-health
// trigger.
const OverloadedWorkerThreshold = 4

// RedistributionThreshold is the minimum score improvement required
// before a migration is worth the disruption.
const RedistributionThreshold = 20

// MaxMigrationsPerCycle bounds churn per redistribution pass.
const MaxMigrationsPerCycle = 2

// Migration is one planned (or executed) worker move.
type Migration struct {
	WorkerID    string
	SourceHost  string
	TargetHost  string
	Improvement int
}

// MigrationResult is the outcome of executing one planned migration.
type MigrationResult struct {
	Migration
	Success bool
	Reason  string // set on failure: "no_longer_idle", "worker_not_found"
}

// Result summarizes one redistribution cycle.
type Result struct {
	Planned  int
	Executed int
	Failed   int
	Results  []MigrationResult
}

// Redistributor rebalances idle workers across the fleet.
type Redistributor struct {
	registry *registry.Registry
	store    workerstore.Store
	logger   *slog.Logger
}

// New returns a Redistributor.
func New(reg *registry.Registry, store workerstore.Store, logger *slog.Logger) *Redistributor {
	return &Redistributor{registry: reg, store: store, logger: logger}
}

func isOverloaded(host registry.Host) bool {
	workerCount := len(host.Workers)
	if host.Status != registry.StatusActive || workerCount == 0 {
		return false
	}
	// Unhealthy hosts are not redistribution sources — they go through
	// the reaper/failover path, not load rebalancing.
	degraded := health.Classify(host.HealthScore) == health.LevelDegraded
	return degraded || workerCount >= OverloadedWorkerThreshold
}

// plan computes the set of migrations worth executing this cycle,
// sorted by improvement descending and capped at
// MaxMigrationsPerCycle.
func (red *Redistributor) plan(ctx context.Context, hosts []registry.Host) []Migration {
	var candidates []Migration

	for _, source := range hosts {
		if !isOverloaded(source) {
			continue
		}
		sourceScore, _ := placement.Score(source, "")
		if sourceScore == placement.Ineligible {
			sourceScore = 0
		}

		for workerID, binding := range source.Workers {
			worker, err := red.store.GetWorker(ctx, workerID)
			if err != nil || worker.Status != workerstore.StatusIdle {
				continue
			}

			others := make([]registry.Host, 0, len(hosts)-1)
			for _, h := range hosts {
				if h.ID != source.ID {
					others = append(others, h)
				}
			}
			selection := placement.Select(others, binding.ProjectID)
			if selection.Outcome != placement.OutcomeSelected {
				continue
			}

			targetScore := selection.Scored[0].Score
			improvement := targetScore - max(0, sourceScore)
			if improvement < RedistributionThreshold {
				continue
			}

			candidates = append(candidates, Migration{
				WorkerID:    workerID,
				SourceHost:  source.ID,
				TargetHost:  selection.HostID,
				Improvement: improvement,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Improvement != candidates[j].Improvement {
			return candidates[i].Improvement > candidates[j].Improvement
		}
		return candidates[i].WorkerID < candidates[j].WorkerID
	})

	if len(candidates) > MaxMigrationsPerCycle {
		candidates = candidates[:MaxMigrationsPerCycle]
	}
	return candidates
}

// Run plans and executes one redistribution cycle.
func (red *Redistributor) Run(ctx context.Context) Result {
	hosts := red.registry.GetAll()
	migrations := red.plan(ctx, hosts)

	result := Result{Planned: len(migrations)}
	for _, m := range migrations {
		mr := red.execute(ctx, m)
		result.Results = append(result.Results, mr)
		if mr.Success {
			result.Executed++
		} else {
			result.Failed++
		}
	}
	return result
}

func (red *Redistributor) execute(ctx context.Context, m Migration) MigrationResult {
	worker, err := red.store.GetWorker(ctx, m.WorkerID)
	if err != nil {
		return MigrationResult{Migration: m, Success: false, Reason: "worker_not_found"}
	}
	if worker.Status != workerstore.StatusIdle {
		return MigrationResult{Migration: m, Success: false, Reason: "no_longer_idle"}
	}

	if err := red.registry.Unbind(m.SourceHost, m.WorkerID); err != nil {
		red.logger.Warn("redistribute: unbind failed", "worker_id", m.WorkerID, "error", err)
		return MigrationResult{Migration: m, Success: false, Reason: err.Error()}
	}
	if err := red.registry.Bind(m.TargetHost, m.WorkerID, worker.ProjectID); err != nil {
		red.logger.Warn("redistribute: bind failed", "worker_id", m.WorkerID, "error", err)
		return MigrationResult{Migration: m, Success: false, Reason: err.Error()}
	}

	red.logger.Info("worker redistributed",
		"worker_id", m.WorkerID, "from_host", m.SourceHost, "to_host", m.TargetHost, "improvement", m.Improvement)
	return MigrationResult{Migration: m, Success: true}
}
