// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestNewDefaultsBinaryPath(t *testing.T) {
	n := New("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if n.binaryPath != "notify-send" {
		t.Errorf("default binaryPath = %q, want notify-send", n.binaryPath)
	}
}

func TestNewKeepsExplicitBinaryPath(t *testing.T) {
	n := New("/usr/local/bin/my-notify", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if n.binaryPath != "/usr/local/bin/my-notify" {
		t.Errorf("binaryPath = %q, want /usr/local/bin/my-notify", n.binaryPath)
	}
}

func TestNotifyMissingBinarySwallowsError(t *testing.T) {
	n := New("/nonexistent/path/to/notify-send", slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Must not panic even though the subprocess can never start.
	n.Notify(context.Background(), "Host unreachable", "details", UrgencyCritical, IconError, 5000)
}

func TestIconNamesCoverAllIcons(t *testing.T) {
	for _, icon := range []Icon{IconInfo, IconWarning, IconError} {
		if iconNames[icon] == "" {
			t.Errorf("no freedesktop icon name mapped for %q", icon)
		}
	}
}
