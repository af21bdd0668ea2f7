// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workerstore

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/hostfleet/lib/codec"
)

// SocketStore implements Store by calling out to an external worker
// task system over a Unix socket, the same request-per-connection
// CBOR protocol as internal/adminsocket. hostfleet does not own this
// system — it only consumes the narrow operations Store names.
type SocketStore struct {
	socketPath string
}

// NewSocketStore returns a SocketStore targeting socketPath.
func NewSocketStore(socketPath string) *SocketStore {
	return &SocketStore{socketPath: socketPath}
}

const (
	dialTimeout         = 5 * time.Second
	responseReadTimeout = 45 * time.Second
	maxResponseSize     = 1024 * 1024
)

type wireResponse struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

func (s *SocketStore) call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		request[k] = v
	}
	request["action"] = action

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("workerstore: connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("workerstore: writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response wireResponse
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return fmt.Errorf("workerstore: reading response: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("workerstore: action %q failed: %s", action, response.Error)
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("workerstore: decoding response for %q: %w", action, err)
		}
	}
	return nil
}

func (s *SocketStore) GetWorker(ctx context.Context, id string) (Worker, error) {
	var worker Worker
	err := s.call(ctx, "get_worker", map[string]any{"worker_id": id}, &worker)
	return worker, err
}

func (s *SocketStore) GetTasksForWorker(ctx context.Context, workerID string, status TaskStatus) ([]Task, error) {
	var tasks []Task
	err := s.call(ctx, "get_tasks_for_worker", map[string]any{
		"worker_id": workerID,
		"status":    string(status),
	}, &tasks)
	return tasks, err
}

func (s *SocketStore) FailTask(ctx context.Context, taskID string) error {
	return s.call(ctx, "fail_task", map[string]any{"task_id": taskID}, nil)
}

func (s *SocketStore) ReleaseClaims(ctx context.Context, workerID string) error {
	return s.call(ctx, "release_claims", map[string]any{"worker_id": workerID}, nil)
}

func (s *SocketStore) UpdateWorkerStatus(ctx context.Context, workerID string, status Status) error {
	return s.call(ctx, "update_worker", map[string]any{
		"worker_id": workerID,
		"status":    string(status),
	}, nil)
}
