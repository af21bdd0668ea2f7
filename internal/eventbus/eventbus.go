// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventbus emits best-effort diagnostic events to an external
// sink. Emission failures are logged and swallowed, never propagated
// to the caller that triggered the event, because a notification
// failure must not abort the fleet operation that produced it.
package eventbus

import (
	"context"
	"log/slog"
)

// Sink is the external event bus collaborator. Implementations may
// fail (network partition, queue full); Bus.Emit logs such failures
// and moves on.
type Sink interface {
	Emit(ctx context.Context, eventName string, payload map[string]any) error
}

// Bus wraps a Sink with the best-effort emission policy.
type Bus struct {
	sink   Sink
	logger *slog.Logger
}

// New returns a Bus. A nil sink is valid and makes every Emit a no-op,
// useful for tests and standalone CLI invocations that don't need an
// event pipeline.
func New(sink Sink, logger *slog.Logger) *Bus {
	return &Bus{sink: sink, logger: logger}
}

// Emit publishes eventName with payload. Failures are logged at warn
// and otherwise ignored.
func (b *Bus) Emit(ctx context.Context, eventName string, payload map[string]any) {
	if b.sink == nil {
		return
	}
	if err := b.sink.Emit(ctx, eventName, payload); err != nil {
		b.logger.Warn("event emission failed",
			"event", eventName,
			"error", err,
		)
	}
}
