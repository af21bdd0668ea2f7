// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package adminsocket

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/hostfleet/internal/placement"
	"github.com/bureau-foundation/hostfleet/internal/reaper"
	"github.com/bureau-foundation/hostfleet/internal/redistribute"
	"github.com/bureau-foundation/hostfleet/internal/registry"
	"github.com/bureau-foundation/hostfleet/internal/supervisor"
	"github.com/bureau-foundation/hostfleet/lib/codec"
)

// RegisterFleetActions wires the operational action set onto server.
// There is no grant-based authorization layer here: hostfleet is a
// single-operator local supervisor, not a multi-tenant fleet behind a
// service mesh.
func RegisterFleetActions(server *Server, reg *registry.Registry, sup *supervisor.Supervisor) {
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return statusResponse(reg), nil
	})

	server.Handle("list_hosts", func(ctx context.Context, raw []byte) (any, error) {
		return listHostsResponse(reg), nil
	})

	server.Handle("show_host", func(ctx context.Context, raw []byte) (any, error) {
		var req showHostRequest
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("invalid show_host request: %w", err)
		}
		return showHostResponse(reg, sup, req.HostID)
	})

	server.Handle("heal_orphans", func(ctx context.Context, raw []byte) (any, error) {
		result := sup.HealOrphansNow(ctx)
		return healOrphansResponse(result), nil
	})

	server.Handle("redistribute", func(ctx context.Context, raw []byte) (any, error) {
		result := sup.RedistributeNow(ctx)
		return redistributeResponse(result), nil
	})

	server.Handle("reset_circuit", func(ctx context.Context, raw []byte) (any, error) {
		var req resetCircuitRequest
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("invalid reset_circuit request: %w", err)
		}
		breaker := sup.Breaker(req.HostID)
		if breaker == nil {
			return nil, fmt.Errorf("no circuit breaker for host %q", req.HostID)
		}
		breaker.Reset()
		return nil, nil
	})

	server.Handle("place", func(ctx context.Context, raw []byte) (any, error) {
		var req placeRequest
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("invalid place request: %w", err)
		}
		selection := placement.Select(reg.GetByStatus(registry.StatusActive), req.ProjectID)
		if selection.Outcome == placement.OutcomeSelected {
			if err := reg.Bind(selection.HostID, req.WorkerID, req.ProjectID); err != nil {
				return nil, err
			}
		}
		return placeResponse(selection), nil
	})
}

type statusSummary struct {
	TotalHosts   int `cbor:"total_hosts"`
	ActiveHosts  int `cbor:"active_hosts"`
	StaleHosts   int `cbor:"stale_hosts"`
	ErrorHosts   int `cbor:"error_hosts"`
	TotalWorkers int `cbor:"total_workers"`
}

func statusResponse(reg *registry.Registry) statusSummary {
	hosts := reg.GetAll()
	summary := statusSummary{TotalHosts: len(hosts)}
	for _, h := range hosts {
		switch h.Status {
		case registry.StatusActive:
			summary.ActiveHosts++
		case registry.StatusStale:
			summary.StaleHosts++
		case registry.StatusError:
			summary.ErrorHosts++
		}
		summary.TotalWorkers += len(h.Workers)
	}
	return summary
}

type hostSummary struct {
	HostID      string `cbor:"host_id"`
	Status      string `cbor:"status"`
	HealthScore int    `cbor:"health_score"`
	WorkerCount int    `cbor:"worker_count"`
}

type listHostsResult struct {
	Hosts []hostSummary `cbor:"hosts"`
}

func listHostsResponse(reg *registry.Registry) listHostsResult {
	hosts := reg.GetAll()
	summaries := make([]hostSummary, 0, len(hosts))
	for _, h := range hosts {
		summaries = append(summaries, hostSummary{
			HostID:      h.ID,
			Status:      string(h.Status),
			HealthScore: h.HealthScore,
			WorkerCount: len(h.Workers),
		})
	}
	return listHostsResult{Hosts: summaries}
}

type showHostRequest struct {
	HostID string `cbor:"host_id"`
}

type showHostResult struct {
	HostID       string   `cbor:"host_id"`
	Status       string   `cbor:"status"`
	HealthScore  int      `cbor:"health_score"`
	ErrorCount   int      `cbor:"error_count"`
	Workers      []string `cbor:"workers"`
	CircuitState string   `cbor:"circuit_state,omitempty"`
	BackoffMS    int64    `cbor:"backoff_ms,omitempty"`
	CrashCount   int      `cbor:"crash_count,omitempty"`
}

func showHostResponse(reg *registry.Registry, sup *supervisor.Supervisor, hostID string) (*showHostResult, error) {
	host, ok := reg.Get(hostID)
	if !ok {
		return nil, fmt.Errorf("unknown host %q", hostID)
	}

	workers := make([]string, 0, len(host.Workers))
	for id := range host.Workers {
		workers = append(workers, id)
	}

	result := &showHostResult{
		HostID:      host.ID,
		Status:      string(host.Status),
		HealthScore: host.HealthScore,
		ErrorCount:  host.ErrorCount,
		Workers:     workers,
	}

	if breaker := sup.Breaker(hostID); breaker != nil {
		snapshot := breaker.Snapshot()
		result.CircuitState = string(snapshot.State)
		result.BackoffMS = snapshot.BackoffMS
		result.CrashCount = snapshot.CrashCount
	}

	return result, nil
}

type healOrphansResult struct {
	OrphansFound int `cbor:"orphans_found"`
	Healed       int `cbor:"healed"`
	Failed       int `cbor:"failed"`
}

func healOrphansResponse(result reaper.Result) healOrphansResult {
	return healOrphansResult{
		OrphansFound: result.OrphansFound,
		Healed:       result.Healed,
		Failed:       result.Failed,
	}
}

type redistributeResult struct {
	Planned  int `cbor:"planned"`
	Executed int `cbor:"executed"`
	Failed   int `cbor:"failed"`
}

func redistributeResponse(result redistribute.Result) redistributeResult {
	return redistributeResult{
		Planned:  result.Planned,
		Executed: result.Executed,
		Failed:   result.Failed,
	}
}

type resetCircuitRequest struct {
	HostID string `cbor:"host_id"`
}

type placeRequest struct {
	WorkerID  string `cbor:"worker_id"`
	ProjectID string `cbor:"project_id,omitempty"`
}

type placeResult struct {
	HostID  string `cbor:"host_id,omitempty"`
	Outcome string `cbor:"outcome"`
}

func placeResponse(selection placement.Selection) placeResult {
	return placeResult{HostID: selection.HostID, Outcome: string(selection.Outcome)}
}
