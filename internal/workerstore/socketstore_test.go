// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workerstore

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/hostfleet/lib/codec"
)

// stubExternalStore is a minimal stand-in for the external worker
// task system SocketStore talks to: it accepts one connection,
// decodes the request, and replies with a fixed response.
type stubExternalStore struct {
	t        *testing.T
	listener net.Listener
	respond  func(request map[string]any) wireResponse
}

func newStubExternalStore(t *testing.T, respond func(request map[string]any) wireResponse) *stubExternalStore {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "store.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listening on stub socket: %v", err)
	}
	stub := &stubExternalStore{t: t, listener: listener, respond: respond}
	go stub.serveOne()
	t.Cleanup(func() { listener.Close() })
	return stub
}

func (s *stubExternalStore) serveOne() {
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	var request map[string]any
	if err := codec.NewDecoder(conn).Decode(&request); err != nil {
		return
	}
	codec.NewEncoder(conn).Encode(s.respond(request))
}

func (s *stubExternalStore) socketPath() string {
	return s.listener.Addr().String()
}

func TestSocketStoreGetWorkerDecodesResponse(t *testing.T) {
	var seenAction string
	stub := newStubExternalStore(t, func(request map[string]any) wireResponse {
		seenAction, _ = request["action"].(string)
		data, _ := codec.Marshal(Worker{ID: "worker-1", Status: StatusIdle})
		return wireResponse{OK: true, Data: data}
	})

	store := NewSocketStore(stub.socketPath())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	worker, err := store.GetWorker(ctx, "worker-1")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if seenAction != "get_worker" {
		t.Errorf("action sent = %q, want get_worker", seenAction)
	}
	if worker.ID != "worker-1" || worker.Status != StatusIdle {
		t.Errorf("worker = %+v", worker)
	}
}

func TestSocketStoreCallPropagatesServerError(t *testing.T) {
	stub := newStubExternalStore(t, func(request map[string]any) wireResponse {
		return wireResponse{OK: false, Error: "worker not found"}
	})

	store := NewSocketStore(stub.socketPath())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.FailTask(ctx, "task-1"); err == nil {
		t.Error("FailTask should surface the server's error response")
	}
}

func TestSocketStoreDialFailureReturnsError(t *testing.T) {
	store := NewSocketStore(filepath.Join(t.TempDir(), "no-such-socket"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.ReleaseClaims(ctx, "worker-1"); err == nil {
		t.Error("ReleaseClaims against a nonexistent socket should fail")
	}
}
