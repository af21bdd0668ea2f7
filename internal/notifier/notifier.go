// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notifier sends desktop notifications for operator-facing
// fleet events (a host going unhealthy, an orphan healed, migrations
// executed): spawn, capture stderr, wrap the error — but here a
// failure is logged and swallowed rather than returned, since a
// missing notification daemon must never abort fleet operations.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Urgency maps to notify-send's --urgency flag.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Icon selects a freedesktop icon name for the notification.
type Icon string

const (
	IconInfo    Icon = "info"
	IconWarning Icon = "warning"
	IconError   Icon = "error"
)

var iconNames = map[Icon]string{
	IconInfo:    "dialog-information",
	IconWarning: "dialog-warning",
	IconError:   "dialog-error",
}

// Notifier sends notifications via a configurable subprocess binary,
// defaulting to notify-send.
type Notifier struct {
	binaryPath string
	logger     *slog.Logger
}

// New returns a Notifier. An empty binaryPath defaults to
// "notify-send".
func New(binaryPath string, logger *slog.Logger) *Notifier {
	if binaryPath == "" {
		binaryPath = "notify-send"
	}
	return &Notifier{binaryPath: binaryPath, logger: logger}
}

// Notify sends a desktop notification. Errors are logged at warn and
// swallowed — the caller's fleet operation continues regardless of
// whether the notification daemon is reachable.
func (n *Notifier) Notify(ctx context.Context, summary, body string, urgency Urgency, icon Icon, timeoutMS int) {
	args := []string{
		"--urgency", string(urgency),
		"--icon", iconNames[icon],
		"--expire-time", fmt.Sprintf("%d", timeoutMS),
		summary,
		body,
	}

	cmd := exec.CommandContext(ctx, n.binaryPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		n.logger.Warn("notification failed",
			"summary", summary,
			"error", err,
			"output", strings.TrimSpace(string(output)),
		)
	}
}
