// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor drives the heartbeat loop and owns the fleet's
// single goroutine lifecycle: bootstrap state, start a background
// loop, shut down cooperatively on ctx.Done. hostfleet drives its own
// clock-based polling loop rather than reacting to external events, so
// Start/Stop guard exactly one heartbeat goroutine with an idempotent
// start/stop flag.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/hostfleet/internal/eventbus"
	"github.com/bureau-foundation/hostfleet/internal/health"
	"github.com/bureau-foundation/hostfleet/internal/notifier"
	"github.com/bureau-foundation/hostfleet/internal/reaper"
	"github.com/bureau-foundation/hostfleet/internal/redistribute"
	"github.com/bureau-foundation/hostfleet/internal/registry"
	"github.com/bureau-foundation/hostfleet/internal/rpcclient"
	"github.com/bureau-foundation/hostfleet/internal/workerstore"
	"github.com/bureau-foundation/hostfleet/lib/clock"
)

// Defaults mirror spec-level constants; Config overrides them from the
// fleet config file.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultCleanupInterval   = 2 * time.Minute
	DefaultHeartbeatTimeout  = 3000 // ms
	DefaultStaleAfter        = 90 * time.Second
	DefaultHostID            = "server"
)

// Config tunes the heartbeat loop. Zero values fall back to the
// defaults above — see internal/fleetconfig for the YAML-loaded form.
type Config struct {
	HeartbeatInterval time.Duration
	CleanupInterval   time.Duration
	HeartbeatTimeout  int
	StaleAfter        time.Duration
	DefaultHostID     string
	EmacsclientPath   string
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.DefaultHostID == "" {
		c.DefaultHostID = os.Getenv("EMACS_SOCKET_NAME")
	}
	if c.DefaultHostID == "" {
		c.DefaultHostID = DefaultHostID
	}
	if c.EmacsclientPath == "" {
		c.EmacsclientPath = os.Getenv("EMACSCLIENT")
	}
	return c
}

// Supervisor owns the heartbeat loop, the per-host RPC clients, and
// the periodic auto-heal/redistribution passes.
type Supervisor struct {
	config   Config
	registry *registry.Registry
	store    workerstore.Store
	events   *eventbus.Bus
	notify   *notifier.Notifier
	clock    clock.Clock
	logger   *slog.Logger

	reaper        *reaper.Reaper
	redistributor *redistribute.Redistributor

	mu         sync.Mutex
	clients    map[string]*rpcclient.Client
	running    bool
	stopLoop   chan struct{}
	loopDone   chan struct{}
	ticksSeen  int
}

// New returns a Supervisor wired to reg and store. events must not be
// nil; a Bus from eventbus.New with a nil sink turns emission into a
// no-op. notify may be nil, in which case operator
// notifications for lifecycle events are skipped — logging still
// happens regardless.
func New(cfg Config, reg *registry.Registry, store workerstore.Store, events *eventbus.Bus, notify *notifier.Notifier, c clock.Clock, logger *slog.Logger) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{
		config:        cfg,
		registry:      reg,
		store:         store,
		events:        events,
		notify:        notify,
		clock:         c,
		logger:        logger,
		reaper:        reaper.New(reg, store, logger),
		redistributor: redistribute.New(reg, store, logger),
		clients:       make(map[string]*rpcclient.Client),
	}
}

// Start registers the default host (resolving the Open Question of
// whether to auto-register rather than rely purely on the heartbeat
// loop's fallback — see DESIGN.md) and launches the heartbeat
// goroutine. Calling Start on an already-running Supervisor is a
// no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopLoop = make(chan struct{})
	s.loopDone = make(chan struct{})
	stopLoop := s.stopLoop
	loopDone := s.loopDone
	s.mu.Unlock()

	s.registry.Register(s.config.DefaultHostID, map[string]string{"socket": s.config.DefaultHostID})

	go s.run(ctx, stopLoop, loopDone)
}

// Stop signals the heartbeat goroutine to exit and waits for it.
// Calling Stop when not running is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopLoop := s.stopLoop
	loopDone := s.loopDone
	s.mu.Unlock()

	close(stopLoop)
	<-loopDone
}

func (s *Supervisor) run(ctx context.Context, stopLoop <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	ticker := s.clock.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopLoop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one heartbeat pass and, every CleanupInterval worth of
// ticks, the cleanup/reaper/redistribution sequence. A panic or error
// in any single host's heartbeat must never abort the tick for the
// rest of the fleet.
func (s *Supervisor) tick(ctx context.Context) {
	hosts := s.registry.GetByStatus(registry.StatusActive)
	if len(hosts) == 0 {
		if host, ok := s.registry.Get(s.config.DefaultHostID); ok {
			hosts = []registry.Host{host}
		}
	}

	var wg sync.WaitGroup
	for _, host := range hosts {
		wg.Add(1)
		go func(h registry.Host) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("heartbeat panicked", "host_id", h.ID, "panic", r)
				}
			}()
			s.heartbeat(ctx, h)
		}(host)
	}
	wg.Wait()

	s.mu.Lock()
	s.ticksSeen++
	dueForCleanup := time.Duration(s.ticksSeen)*s.config.HeartbeatInterval >= s.config.CleanupInterval
	if dueForCleanup {
		s.ticksSeen = 0
	}
	s.mu.Unlock()

	if dueForCleanup {
		s.runCleanupCycle(ctx)
	}
}

func (s *Supervisor) runCleanupCycle(ctx context.Context) {
	staled := s.registry.CleanupStale(s.clock.Now(), s.config.StaleAfter)
	for _, id := range staled {
		s.logger.Warn("host marked stale", "host_id", id)
		if s.notify != nil {
			s.notify.Notify(ctx, "Host went stale", fmt.Sprintf("host %s has not heartbeated within the stale window", id),
				notifier.UrgencyNormal, notifier.IconWarning, 5000)
		}
	}

	healResult := s.reaper.Run(ctx)
	if healResult.OrphansFound > 0 {
		s.logger.Info("auto-heal cycle complete",
			"orphans_found", healResult.OrphansFound,
			"healed", healResult.Healed,
			"failed", healResult.Failed,
		)
		workers := make([]map[string]any, 0, len(healResult.Results))
		for _, r := range healResult.Results {
			workers = append(workers, map[string]any{
				"worker_id": r.WorkerID,
				"action":    string(r.Action),
				"success":   r.Success,
			})
		}
		s.events.Emit(ctx, "orphans_healed", map[string]any{
			"orphans_found": healResult.OrphansFound,
			"healed":        healResult.Healed,
			"failed":        healResult.Failed,
			"workers":       workers,
		})
	}

	redistResult := s.redistributor.Run(ctx)
	if redistResult.Planned > 0 {
		s.logger.Info("redistribution cycle complete",
			"planned", redistResult.Planned,
			"executed", redistResult.Executed,
			"failed", redistResult.Failed,
		)
		s.events.Emit(ctx, "workers_redistributed", map[string]any{
			"planned":  redistResult.Planned,
			"executed": redistResult.Executed,
			"failed":   redistResult.Failed,
		})
	}
}

// heartbeat pings one host and applies the resulting health update to
// the registry.
func (s *Supervisor) heartbeat(ctx context.Context, host registry.Host) {
	client := s.clientFor(host)
	result := client.Eval(ctx, "t", s.config.HeartbeatTimeout)

	if result.OK {
		update := registry.HeartbeatUpdate{
			HealthScore: health.Blend(host.HealthScore, health.Measurement{
				LatencyMS:         intPtr(int(result.ElapsedMS)),
				ConsecutiveErrors: 0,
				WorkerCount:       len(host.Workers),
				PriorErrorCount:   host.ErrorCount,
				Success:           true,
			}),
			ErrorCount: 0,
		}
		if err := s.registry.HeartbeatSuccess(host.ID, s.clock.Now(), update); err != nil {
			s.logger.Error("heartbeat: registry update failed", "host_id", host.ID, "error", err)
		}
		return
	}

	newErrorCount := host.ErrorCount + 1
	status := registry.StatusActive
	if newErrorCount >= 3 {
		status = registry.StatusError
	}
	update := registry.HeartbeatUpdate{
		HealthScore: health.Blend(host.HealthScore, health.Measurement{
			LatencyMS:         nil,
			ConsecutiveErrors: newErrorCount,
			WorkerCount:       len(host.Workers),
			PriorErrorCount:   host.ErrorCount,
			Success:           false,
		}),
		ErrorCount: newErrorCount,
		Status:     status,
	}
	if err := s.registry.HeartbeatFailure(host.ID, update); err != nil {
		s.logger.Error("heartbeat: registry update failed", "host_id", host.ID, "error", err)
	}
	s.logger.Warn("heartbeat failed",
		"host_id", host.ID,
		"reason", result.Reason,
		"tag", result.Tag,
		"error_count", newErrorCount,
	)

	if status == registry.StatusError && host.Status != registry.StatusError && s.notify != nil {
		s.notify.Notify(ctx, "Host unreachable", fmt.Sprintf("host %s failed %d consecutive heartbeats", host.ID, newErrorCount),
			notifier.UrgencyCritical, notifier.IconError, 10000)
	}
}

// clientFor returns (creating if necessary) the RPC client targeting
// host's configured socket.
func (s *Supervisor) clientFor(host registry.Host) *rpcclient.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[host.ID]; ok {
		return client
	}
	errorSink := func(deadHostID, message string) {
		if err := s.registry.MarkError(deadHostID, message); err != nil {
			s.logger.Error("mark_error: registry update failed", "host_id", deadHostID, "error", err)
		}
		s.logger.Warn("host reported dead by RPC client", "host_id", deadHostID, "message", message)
	}
	client := rpcclient.NewClient(s.clock, host.ID, host.Opts["socket"], s.config.EmacsclientPath, errorSink)
	s.clients[host.ID] = client
	return client
}

// Breaker returns the circuit breaker for hostID's RPC client, or nil
// if no client has been created for it yet (the host has never been
// heartbeated).
func (s *Supervisor) Breaker(hostID string) *rpcclient.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[hostID]; ok {
		return client.Breaker()
	}
	return nil
}

// HealOrphansNow runs one auto-heal pass immediately, for the admin
// socket's heal_orphans action.
func (s *Supervisor) HealOrphansNow(ctx context.Context) reaper.Result {
	return s.reaper.Run(ctx)
}

// RedistributeNow runs one redistribution pass immediately, for the
// admin socket's redistribute action.
func (s *Supervisor) RedistributeNow(ctx context.Context) redistribute.Result {
	return s.redistributor.Run(ctx)
}

func intPtr(v int) *int { return &v }
