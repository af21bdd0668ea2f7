// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hostfleet-monitor is a read-only terminal dashboard over hostfleetd's
// admin socket: a thin main() that parses flags and hands off to a
// bubbletea program, with the actual model living alongside it in the
// same package rather than a shared library, since this dashboard has
// a single source of data (the admin socket).
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

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

	if flag.NArg() > 0 {
		return fmt.Errorf("usage: hostfleet-monitor [-socket path]")
	}

	if _, err := os.Stat(socketPath); err != nil {
		return fmt.Errorf("admin socket %s: %w", socketPath, err)
	}

	client := adminsocket.NewClient(socketPath)
	model := NewModel(client)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
