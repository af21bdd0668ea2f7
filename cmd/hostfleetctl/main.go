// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hostfleetctl is a thin client for hostfleetd's admin socket: each
// subcommand wraps exactly one admin action rather than growing a
// monolithic CLI with deep subcommand trees.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/bureau-foundation/hostfleet/internal/adminsocket"
	"github.com/bureau-foundation/hostfleet/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var socketPath string
	flag.StringVar(&socketPath, "socket", "/run/hostfleet/admin.sock", "hostfleetd admin socket path")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: hostfleetctl [-socket path] <status|hosts|show-host|heal|redistribute|reset-circuit> [args]")
	}

	client := adminsocket.NewClient(socketPath)
	ctx := context.Background()

	switch args[0] {
	case "status":
		return call(ctx, client, "status", nil)
	case "hosts":
		return call(ctx, client, "list_hosts", nil)
	case "show-host":
		if len(args) < 2 {
			return fmt.Errorf("usage: hostfleetctl show-host <host_id>")
		}
		return call(ctx, client, "show_host", map[string]any{"host_id": args[1]})
	case "heal":
		return call(ctx, client, "heal_orphans", nil)
	case "redistribute":
		return call(ctx, client, "redistribute", nil)
	case "reset-circuit":
		if len(args) < 2 {
			return fmt.Errorf("usage: hostfleetctl reset-circuit <host_id>")
		}
		return call(ctx, client, "reset_circuit", map[string]any{"host_id": args[1]})
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func call(ctx context.Context, client *adminsocket.Client, action string, fields map[string]any) error {
	var result map[string]any
	if err := client.Call(ctx, action, fields, &result); err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
