// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpcclient

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/hostfleet/lib/clock"
)

// MaxTimeoutMS is the hard ceiling on any single Eval call, regardless
// of what the caller requests.
const MaxTimeoutMS = 30000

// Reason classifies an Eval failure.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonCircuitOpen Reason = "circuit_open"
	ReasonHostDead    Reason = "host_dead"
	ReasonException   Reason = "exception"
)

// Result is the outcome of one Eval call.
type Result struct {
	OK        bool
	Value     string
	ElapsedMS int64

	Reason  Reason
	Tag     string // set when Reason == ReasonHostDead
	Message string // trimmed stderr; set when Reason == ReasonHostDead
	Err     error
}

// HostErrorSink reports a host-death classification to whatever owns
// fleet state (the registry's MarkError), so a dead host stops being
// eligible for placement the moment its death is detected rather than
// waiting for the heartbeat loop's separate 3-failure threshold.
type HostErrorSink func(hostID, message string)

// deathPatterns maps a stderr substring pattern to the tag recorded
// against the circuit breaker and the registry's error message. Order
// matters only in that the first match wins; the patterns are
// disjoint in practice.
var deathPatterns = []struct {
	pattern *regexp.Regexp
	tag     string
}{
	{regexp.MustCompile(`(?i)can't find socket`), "socket_not_found"},
	{regexp.MustCompile(`(?i)no such file or directory`), "socket_missing"},
	{regexp.MustCompile(`(?i)connection refused`), "connection_refused"},
	{regexp.MustCompile(`(?i)connection reset`), "connection_reset"},
	{regexp.MustCompile(`(?i)server did not respond`), "server_unresponsive"},
	{regexp.MustCompile(`(?i)socket.*not available`), "socket_unavailable"},
}

// classify matches stderr output against the host-death pattern
// table. Returns the matched tag and true, or "" and false if none
// matched (an ordinary exception, not a dead host).
func classify(stderr string) (string, bool) {
	for _, entry := range deathPatterns {
		if entry.pattern.MatchString(stderr) {
			return entry.tag, true
		}
	}
	return "", false
}

// Client wraps the host RPC subprocess behind a circuit breaker. One
// Client targets one host identified by its socket name, the same
// shape as lib/tmux.Server injecting a fixed -S flag onto every call.
type Client struct {
	clock      clock.Clock
	breaker    *Breaker
	hostID     string // reported to errorSink on host-death
	binaryPath string // EMACSCLIENT, default "emacsclient"
	socketName string // EMACS_SOCKET_NAME; empty omits -s entirely
	errorSink  HostErrorSink
}

// NewClient returns a Client targeting socketName (pass "" to omit the
// -s flag and use the subprocess binary's own default target).
// binaryPath overrides the subprocess executable; pass "" for the
// default "emacsclient". hostID identifies this client's host to
// errorSink, which may be nil if the caller does not need host-death
// reported anywhere beyond the breaker.
func NewClient(c clock.Clock, hostID, socketName, binaryPath string, errorSink HostErrorSink) *Client {
	if binaryPath == "" {
		binaryPath = "emacsclient"
	}
	return &Client{
		clock:      c,
		breaker:    NewBreaker(c),
		hostID:     hostID,
		binaryPath: binaryPath,
		socketName: socketName,
		errorSink:  errorSink,
	}
}

// Breaker returns the client's circuit breaker for diagnostics or a
// manual reset via the admin socket.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Eval runs code on the host subprocess, guarded by the circuit
// breaker and bounded by timeoutMS (clamped to [0, MaxTimeoutMS]).
//
// The breaker guard is checked before any subprocess is spawned: a
// blocked call returns immediately with ReasonCircuitOpen and zero
// elapsed time.
func (c *Client) Eval(ctx context.Context, code string, timeoutMS int) Result {
	timeoutMS = clampTimeout(timeoutMS)

	if c.breaker.guard() == guardBlocked {
		return Result{
			OK:     false,
			Reason: ReasonCircuitOpen,
			Err:    fmt.Errorf("rpcclient: circuit open"),
		}
	}

	start := c.clock.Now()
	result := c.invoke(ctx, code, timeoutMS)
	result.ElapsedMS = c.clock.Now().Sub(start).Milliseconds()

	switch {
	case result.OK:
		c.recordSuccess()
	case result.Reason == ReasonHostDead:
		c.recordTrip(result.Err.Error(), result.Tag)
		if c.errorSink != nil {
			c.errorSink(c.hostID, fmt.Sprintf("[%s] %s", result.Tag, result.Message))
		}
	case result.Reason == ReasonTimeout || result.Reason == ReasonException:
		// Only a half-open probe failing this way trips the breaker;
		// an ordinary closed-state exception or timeout is surfaced
		// without affecting breaker state.
		if c.breaker.Snapshot().State == StateHalfOpen {
			c.recordTrip(result.Err.Error(), string(result.Reason))
		}
	}

	return result
}

func (c *Client) recordSuccess() { c.breaker.recordSuccess() }
func (c *Client) recordTrip(msg, tag string) { c.breaker.recordTrip(msg, tag) }

// invoke spawns the subprocess and classifies the outcome. It does
// not touch breaker state — callers apply transitions based on the
// returned Result.
func (c *Client) invoke(ctx context.Context, code string, timeoutMS int) Result {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	args := c.args(code)
	cmd := exec.CommandContext(runCtx, c.binaryPath, args...)

	// Run in its own process group so a deadline kill reaches every
	// child the subprocess forks, not just the direct child. Without
	// Setpgid, exec.CommandContext's default cancellation only signals
	// the process it started — a forked grandchild survives and the
	// "timed-out subprocesses are killed" guarantee does not hold.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	output, runErr := cmd.Output()
	stderr := ""
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		stderr = string(exitErr.Stderr)
	}

	if runCtx.Err() != nil {
		return Result{
			OK:     false,
			Reason: ReasonTimeout,
			Err:    fmt.Errorf("rpcclient: eval timed out after %dms", timeoutMS),
		}
	}

	if runErr == nil {
		return Result{OK: true, Value: unwrapQuotes(strings.TrimSpace(string(output)))}
	}

	if tag, matched := classify(stderr); matched {
		message := strings.TrimSpace(stderr)
		return Result{
			OK:      false,
			Reason:  ReasonHostDead,
			Tag:     tag,
			Message: message,
			Err:     fmt.Errorf("rpcclient: host dead [%s]: %s", tag, message),
		}
	}

	return Result{
		OK:     false,
		Reason: ReasonException,
		Err:    fmt.Errorf("rpcclient: eval failed: %w (%s)", runErr, strings.TrimSpace(stderr)),
	}
}

// args builds the subprocess argument list: -s <socket> (if set)
// followed by --eval <code>.
func (c *Client) args(code string) []string {
	var args []string
	if c.socketName != "" {
		args = append(args, "-s", c.socketName)
	}
	args = append(args, "--eval", code)
	return args
}

// unwrapQuotes strips one layer of surrounding double quotes, matching
// the host subprocess's convention of quoting string results.
func unwrapQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func clampTimeout(timeoutMS int) int {
	if timeoutMS < 0 {
		return 0
	}
	if timeoutMS > MaxTimeoutMS {
		return MaxTimeoutMS
	}
	return timeoutMS
}
