// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hostfleetd supervises a fleet of editor-host RPC subprocesses: it
// heartbeats every host, scores and rebalances worker bindings, heals
// orphans left behind by dead hosts, and exposes an operator socket
// for manual intervention. The entrypoint parses flags, bootstraps
// state, starts the socket server and the background loop as
// goroutines, blocks on context cancellation, and shuts down
// cooperatively.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/hostfleet/internal/adminsocket"
	"github.com/bureau-foundation/hostfleet/internal/eventbus"
	"github.com/bureau-foundation/hostfleet/internal/fleetconfig"
	"github.com/bureau-foundation/hostfleet/internal/notifier"
	"github.com/bureau-foundation/hostfleet/internal/registry"
	"github.com/bureau-foundation/hostfleet/internal/supervisor"
	"github.com/bureau-foundation/hostfleet/internal/workerstore"
	"github.com/bureau-foundation/hostfleet/lib/clock"
	"github.com/bureau-foundation/hostfleet/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var workerStoreSocket string
	var eventBusSocket string
	flag.StringVar(&configPath, "config", os.Getenv(fleetconfig.ConfigEnvVar), "path to hostfleet config file")
	flag.StringVar(&workerStoreSocket, "worker-store-socket", "", "Unix socket path for the external worker task store")
	flag.StringVar(&eventBusSocket, "event-bus-socket", "", "Unix socket path for the external event bus (optional)")
	flag.Parse()

	if configPath == "" {
		return fmt.Errorf("no config path: set %s or pass --config", fleetconfig.ConfigEnvVar)
	}
	if workerStoreSocket == "" {
		return fmt.Errorf("--worker-store-socket is required")
	}

	cfg, err := fleetconfig.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	supervisorConfig, err := cfg.SupervisorConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.New()
	store := workerstore.NewSocketStore(workerStoreSocket)

	var bus *eventbus.Bus
	if eventBusSocket != "" {
		bus = eventbus.New(eventbus.NewSocketSink(eventBusSocket), logger)
	} else {
		bus = eventbus.New(nil, logger)
	}

	notify := notifier.New(cfg.NotifySendPath, logger)

	realClock := clock.Real()
	sup := supervisor.New(supervisorConfig, reg, store, bus, notify, realClock, logger)

	socketPath := cfg.AdminSocketPath
	if socketPath == "" {
		socketPath = "/run/hostfleet/admin.sock"
	}
	socketServer := adminsocket.New(socketPath, logger)
	adminsocket.RegisterFleetActions(socketServer, reg, sup)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	sup.Start(ctx)

	logger.Info("hostfleetd running",
		"admin_socket", socketPath,
		"worker_store_socket", workerStoreSocket,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	sup.Stop()

	if err := <-socketDone; err != nil {
		logger.Error("admin socket server error", "error", err)
	}

	return nil
}
