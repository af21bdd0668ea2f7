// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type recordingSink struct {
	events []string
	err    error
}

func (s *recordingSink) Emit(ctx context.Context, eventName string, payload map[string]any) error {
	s.events = append(s.events, eventName)
	return s.err
}

func TestEmitWithNilSinkIsNoop(t *testing.T) {
	bus := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus.Emit(context.Background(), "orphans_healed", map[string]any{"healed": 1})
	// No panic, nothing to assert beyond reaching here.
}

func TestEmitForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	bus := New(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	bus.Emit(context.Background(), "workers_redistributed", map[string]any{"planned": 2})

	if len(sink.events) != 1 || sink.events[0] != "workers_redistributed" {
		t.Errorf("sink.events = %v, want [workers_redistributed]", sink.events)
	}
}

func TestEmitSwallowsSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("queue full")}
	bus := New(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic or otherwise propagate the sink's failure.
	bus.Emit(context.Background(), "orphans_healed", nil)
}
