// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpcclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/hostfleet/lib/clock"
)

func TestClassifyMatchesDeathPatterns(t *testing.T) {
	cases := []struct {
		stderr    string
		wantTag   string
		wantMatch bool
	}{
		{"emacsclient: can't find socket; have you started the server?", "socket_not_found", true},
		{"open /tmp/emacs1000/server: no such file or directory", "socket_missing", true},
		{"connect: Connection refused", "connection_refused", true},
		{"read: connection reset by peer", "connection_reset", true},
		{"*ERROR*: the server did not respond in time", "server_unresponsive", true},
		{"socket /tmp/emacs1000/server is not available", "socket_unavailable", true},
		{"(wrong-type-argument stringp nil)", "", false},
	}
	for _, c := range cases {
		tag, matched := classify(c.stderr)
		if matched != c.wantMatch || tag != c.wantTag {
			t.Errorf("classify(%q) = (%q, %v), want (%q, %v)", c.stderr, tag, matched, c.wantTag, c.wantMatch)
		}
	}
}

func TestArgsOmitsSocketFlagWhenEmpty(t *testing.T) {
	c := NewClient(clock.Fake(time.Now()), "host-1", "", "", nil)
	args := c.args(`(+ 1 2)`)
	want := []string{"--eval", `(+ 1 2)`}
	if len(args) != len(want) || args[0] != want[0] || args[1] != want[1] {
		t.Errorf("args() = %v, want %v", args, want)
	}
}

func TestArgsIncludesSocketFlag(t *testing.T) {
	c := NewClient(clock.Fake(time.Now()), "host-1", "myhost", "", nil)
	args := c.args("t")
	want := []string{"-s", "myhost", "--eval", "t"}
	if len(args) != len(want) {
		t.Fatalf("args() = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args()[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestUnwrapQuotes(t *testing.T) {
	cases := []struct{ in, want string }{
		{`"hello"`, "hello"},
		{"hello", "hello"},
		{`""`, ""},
		{`"`, `"`},
	}
	for _, c := range cases {
		if got := unwrapQuotes(c.in); got != c.want {
			t.Errorf("unwrapQuotes(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestClampTimeout(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{5000, 5000},
		{MaxTimeoutMS, MaxTimeoutMS},
		{MaxTimeoutMS + 1000, MaxTimeoutMS},
	}
	for _, c := range cases {
		if got := clampTimeout(c.in); got != c.want {
			t.Errorf("clampTimeout(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNewClientDefaultsBinaryPath(t *testing.T) {
	c := NewClient(clock.Fake(time.Now()), "host-1", "", "", nil)
	if c.binaryPath != "emacsclient" {
		t.Errorf("default binaryPath = %q, want emacsclient", c.binaryPath)
	}
}

func TestEvalBlockedByOpenCircuitReturnsImmediately(t *testing.T) {
	fake := clock.Fake(time.Now())
	c := NewClient(fake, "host-1", "", "/nonexistent/binary/does-not-exist", nil)
	c.breaker.recordTrip("boom", "tag")

	result := c.Eval(context.Background(), "t", 1000)
	if result.OK {
		t.Fatal("Eval should fail while circuit is open")
	}
	if result.Reason != ReasonCircuitOpen {
		t.Errorf("Reason = %q, want circuit_open", result.Reason)
	}
	if result.ElapsedMS != 0 {
		t.Errorf("ElapsedMS = %d, want 0 for a circuit-blocked call", result.ElapsedMS)
	}
}

func TestEvalHostDeathReportsToErrorSink(t *testing.T) {
	scriptPath := filepath.Join(t.TempDir(), "fake-emacsclient.sh")
	script := "#!/bin/sh\necho 'connect: Connection refused' 1>&2\nexit 1\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake subprocess: %v", err)
	}

	var sinkHostID, sinkMessage string
	sink := func(hostID, message string) {
		sinkHostID = hostID
		sinkMessage = message
	}

	fake := clock.Fake(time.Now())
	c := NewClient(fake, "host-1", "", scriptPath, sink)

	result := c.Eval(context.Background(), "t", 1000)
	if result.Reason != ReasonHostDead {
		t.Fatalf("Reason = %q, want host_dead", result.Reason)
	}
	if result.Tag != "connection_refused" {
		t.Errorf("Tag = %q, want connection_refused", result.Tag)
	}
	if sinkHostID != "host-1" {
		t.Errorf("errorSink host_id = %q, want host-1", sinkHostID)
	}
	if sinkMessage != "[connection_refused] connect: Connection refused" {
		t.Errorf("errorSink message = %q", sinkMessage)
	}
	if c.breaker.Snapshot().State != StateOpen {
		t.Error("a host-death classification should trip the breaker")
	}
}
