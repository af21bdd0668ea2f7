// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpcclient wraps the host RPC subprocess (emacsclient,
// or an equivalent configured via EMACSCLIENT) behind a circuit
// breaker: a typed wrapper adding a -s <socket> flag to every
// subprocess call when the client has a socket name, with bounded
// exponential backoff and classification of failures into host-death
// (which trips the breaker) and ordinary exceptions.
package rpcclient

import (
	"sync"
	"time"

	"github.com/bureau-foundation/hostfleet/lib/clock"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// InitialBackoff and MaxBackoff bound the breaker's reopen delay.
const (
	InitialBackoff = 1000 * time.Millisecond
	MaxBackoff     = 60000 * time.Millisecond
)

// Snapshot is a read-only view of the breaker's state, returned by
// Breaker.Snapshot for diagnostics and the admin socket's show_host
// action.
type Snapshot struct {
	State      State
	TrippedAt  time.Time
	BackoffMS  int64
	CrashCount int
	LastError  string
	LastTag    string
	RecoveryAt time.Time
}

// Breaker is a process-wide circuit breaker guarding calls to a
// single RPC subprocess target. Safe for concurrent use.
type Breaker struct {
	clock clock.Clock

	mu         sync.Mutex
	state      State
	trippedAt  time.Time
	backoffMS  int64
	crashCount int
	lastError  string
	lastTag    string
	recoveryAt time.Time
}

// NewBreaker returns a Breaker in the closed state.
func NewBreaker(c clock.Clock) *Breaker {
	return &Breaker{
		clock: c,
		state: StateClosed,
	}
}

// guardResult is what Guard decides before a call is attempted.
type guardResult int

const (
	guardProceed guardResult = iota
	guardBlocked
)

// guard checks whether a call may proceed, transitioning open->half_open
// when the backoff window has elapsed. Must be called before every
// subprocess spawn.
func (b *Breaker) guard() guardResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return guardProceed
	case StateOpen:
		if b.clock.Now().Sub(b.trippedAt) >= time.Duration(b.backoffMS)*time.Millisecond {
			b.state = StateHalfOpen
			return guardProceed
		}
		return guardBlocked
	default:
		return guardBlocked
	}
}

// recordSuccess transitions a half-open probe to closed and resets
// backoff. A success while already closed is a no-op transition.
func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.backoffMS = int64(InitialBackoff / time.Millisecond)
		b.recoveryAt = b.clock.Now()
	}
}

// recordTrip transitions the breaker to open, doubling the backoff if
// it was already open (repeated trip without an intervening close) or
// resetting to the initial backoff otherwise (first trip, or a
// half-open probe that failed).
func (b *Breaker) recordTrip(errMsg, tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		next := b.backoffMS * 2
		if next > int64(MaxBackoff/time.Millisecond) {
			next = int64(MaxBackoff / time.Millisecond)
		}
		b.backoffMS = next
	} else {
		b.backoffMS = int64(InitialBackoff / time.Millisecond)
	}

	b.state = StateOpen
	b.trippedAt = b.clock.Now()
	b.crashCount++
	b.lastError = errMsg
	b.lastTag = tag
}

// Snapshot returns the breaker's current state for diagnostics.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:      b.state,
		TrippedAt:  b.trippedAt,
		BackoffMS:  b.backoffMS,
		CrashCount: b.crashCount,
		LastError:  b.lastError,
		LastTag:    b.lastTag,
		RecoveryAt: b.recoveryAt,
	}
}

// Reset forces the breaker back to closed with zero backoff. Intended
// for operator use via the admin socket's reset_circuit action, or
// tests — never called from automatic fleet logic.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.backoffMS = 0
	b.trippedAt = time.Time{}
}
