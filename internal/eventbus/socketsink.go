// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bureau-foundation/hostfleet/lib/codec"
)

// SocketSink emits events to an external event bus over a Unix
// socket, fire-and-forget: it writes the CBOR payload and does not
// wait for a response, since Bus.Emit already treats every failure as
// non-fatal and an event bus's own acknowledgement is not part of
// hostfleet's contract.
type SocketSink struct {
	socketPath string
}

// NewSocketSink returns a SocketSink targeting socketPath.
func NewSocketSink(socketPath string) *SocketSink {
	return &SocketSink{socketPath: socketPath}
}

const dialTimeout = 5 * time.Second

func (s *SocketSink) Emit(ctx context.Context, eventName string, payload map[string]any) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("eventbus: connecting: %w", err)
	}
	defer conn.Close()

	message := map[string]any{"event": eventName, "payload": payload}
	if err := codec.NewEncoder(conn).Encode(message); err != nil {
		return fmt.Errorf("eventbus: writing event: %w", err)
	}
	return nil
}
