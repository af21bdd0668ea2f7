// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/charmbracelet/lipgloss"

// Theme holds the color palette for the monitor, adapted from the
// teacher's lib/tui.Theme: a fixed set of named lipgloss colors rather
// than a configurable scheme, since hostfleet-monitor has one operator
// and one terminal, not a multi-user ticket board.
type Theme struct {
	NormalText  lipgloss.Color
	FaintText   lipgloss.Color
	HeaderFG    lipgloss.Color
	BorderColor lipgloss.Color

	HealthyColor  lipgloss.Color
	DegradedColor lipgloss.Color
	UnhealthyColor lipgloss.Color

	CircuitClosedColor   lipgloss.Color
	CircuitOpenColor     lipgloss.Color
	CircuitHalfOpenColor lipgloss.Color

	HostStatusColors map[string]lipgloss.Color
}

// DefaultTheme uses an ANSI-256 palette: green family for
// healthy/closed states, yellow for degraded/transitional, red for
// unhealthy/open.
var DefaultTheme = Theme{
	NormalText:  lipgloss.Color("252"),
	FaintText:   lipgloss.Color("243"),
	HeaderFG:    lipgloss.Color("230"),
	BorderColor: lipgloss.Color("238"),

	HealthyColor:   lipgloss.Color("108"),
	DegradedColor:  lipgloss.Color("179"),
	UnhealthyColor: lipgloss.Color("167"),

	CircuitClosedColor:   lipgloss.Color("108"),
	CircuitOpenColor:     lipgloss.Color("167"),
	CircuitHalfOpenColor: lipgloss.Color("179"),

	HostStatusColors: map[string]lipgloss.Color{
		"active":     lipgloss.Color("108"),
		"stale":      lipgloss.Color("179"),
		"error":      lipgloss.Color("167"),
		"terminated": lipgloss.Color("243"),
	},
}

// HealthColor returns the color for a 0-100 health score, matching
// internal/health's Classify thresholds.
func (t Theme) HealthColor(score int) lipgloss.Color {
	switch {
	case score >= 70:
		return t.HealthyColor
	case score >= 30:
		return t.DegradedColor
	default:
		return t.UnhealthyColor
	}
}

// CircuitColor returns the color for a breaker state string
// ("closed", "open", "half_open").
func (t Theme) CircuitColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return t.CircuitOpenColor
	case "half_open":
		return t.CircuitHalfOpenColor
	default:
		return t.CircuitClosedColor
	}
}

// StatusColor returns the color for a host status string.
func (t Theme) StatusColor(status string) lipgloss.Color {
	if color, ok := t.HostStatusColors[status]; ok {
		return color
	}
	return t.NormalText
}
