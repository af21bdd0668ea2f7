// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package health

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		score int
		want  Level
	}{
		{100, LevelHealthy},
		{70, LevelHealthy},
		{69, LevelDegraded},
		{30, LevelDegraded},
		{29, LevelUnhealthy},
		{0, LevelUnhealthy},
	}
	for _, c := range cases {
		if got := Classify(c.score); got != c.want {
			t.Errorf("Classify(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestLatencyPenalty(t *testing.T) {
	fast := 100
	mid := 1250
	slow := 3000

	if got := LatencyPenalty(nil); got != -40 {
		t.Errorf("LatencyPenalty(nil) = %d, want -40", got)
	}
	if got := LatencyPenalty(&fast); got != 0 {
		t.Errorf("LatencyPenalty(100) = %d, want 0", got)
	}
	if got := LatencyPenalty(&slow); got != -40 {
		t.Errorf("LatencyPenalty(3000) = %d, want -40", got)
	}
	// (1250, -20) is the interpolation midpoint between (500,0) and (2000,-40).
	if got := LatencyPenalty(&mid); got != -20 {
		t.Errorf("LatencyPenalty(1250) = %d, want -20", got)
	}
}

func TestErrorPenalty(t *testing.T) {
	cases := []struct {
		consecutive int
		want        int
	}{
		{0, 0},
		{1, -15},
		{2, -30},
		{3, -45},
		{4, -50}, // capped
		{10, -50},
	}
	for _, c := range cases {
		if got := ErrorPenalty(c.consecutive); got != c.want {
			t.Errorf("ErrorPenalty(%d) = %d, want %d", c.consecutive, got, c.want)
		}
	}
}

func TestLoadPenalty(t *testing.T) {
	cases := []struct {
		workers int
		want    int
	}{
		{0, 0},
		{1, 0},
		{2, -2},
		{5, -8},
	}
	for _, c := range cases {
		if got := LoadPenalty(c.workers); got != c.want {
			t.Errorf("LoadPenalty(%d) = %d, want %d", c.workers, got, c.want)
		}
	}
}

func TestBlendHealthyHeartbeat(t *testing.T) {
	latency := 100
	score := Blend(100, Measurement{
		LatencyMS:         &latency,
		ConsecutiveErrors: 0,
		WorkerCount:       1,
		PriorErrorCount:   0,
		Success:           true,
	})
	// raw = 100, blended = 0.3*100 + 0.7*100 = 100.
	if score != 100 {
		t.Errorf("Blend() = %d, want 100", score)
	}
}

func TestBlendAppliesRecoveryBonus(t *testing.T) {
	latency := 100
	score := Blend(50, Measurement{
		LatencyMS:         &latency,
		ConsecutiveErrors: 0,
		WorkerCount:       1,
		PriorErrorCount:   2,
		Success:           true,
	})
	// raw = 100, blended = 0.3*100 + 0.7*50 = 65, +5 recovery bonus = 70.
	if score != 70 {
		t.Errorf("Blend() with recovery = %d, want 70", score)
	}
}

func TestBlendFailureDragsScoreDown(t *testing.T) {
	score := Blend(100, Measurement{
		LatencyMS:         nil,
		ConsecutiveErrors: 1,
		WorkerCount:       1,
		PriorErrorCount:   0,
		Success:           false,
	})
	// raw = 100 - 40 (latency) - 15 (error) = 45.
	// blended = 0.3*45 + 0.7*100 = 83.5 -> truncates to 83.
	if score != 83 {
		t.Errorf("Blend() on failure = %d, want 83", score)
	}
}

func TestBlendClampsToRange(t *testing.T) {
	score := Blend(0, Measurement{
		LatencyMS:         nil,
		ConsecutiveErrors: 10,
		WorkerCount:       20,
		PriorErrorCount:   0,
		Success:           false,
	})
	if score < 0 || score > 100 {
		t.Errorf("Blend() = %d, want value in [0,100]", score)
	}
}
