// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/hostfleet/internal/adminsocket"
)

// pollInterval is how often the dashboard re-queries the admin socket.
// It is shorter than the supervisor's default 30s heartbeat interval,
// so a heartbeat's result shows up within one poll.
const pollInterval = 5 * time.Second

// wire response shapes mirror internal/adminsocket's unexported
// result types field-for-field; the CBOR tags are the contract
// between hostfleetd and any client, this one included.
type statusSummary struct {
	TotalHosts   int `cbor:"total_hosts"`
	ActiveHosts  int `cbor:"active_hosts"`
	StaleHosts   int `cbor:"stale_hosts"`
	ErrorHosts   int `cbor:"error_hosts"`
	TotalWorkers int `cbor:"total_workers"`
}

type hostSummary struct {
	HostID      string `cbor:"host_id"`
	Status      string `cbor:"status"`
	HealthScore int    `cbor:"health_score"`
	WorkerCount int    `cbor:"worker_count"`
}

type showHostResult struct {
	HostID       string   `cbor:"host_id"`
	Status       string   `cbor:"status"`
	HealthScore  int      `cbor:"health_score"`
	ErrorCount   int      `cbor:"error_count"`
	Workers      []string `cbor:"workers"`
	CircuitState string   `cbor:"circuit_state,omitempty"`
	BackoffMS    int64    `cbor:"backoff_ms,omitempty"`
	CrashCount   int      `cbor:"crash_count,omitempty"`
}

// refreshMsg carries the result of one poll cycle.
type refreshMsg struct {
	status statusSummary
	hosts  []hostSummary
	detail *showHostResult
	err    error
}

type tickMsg time.Time

// Model is a read-only dashboard: it never mutates fleet state except
// through the explicit 'h' (heal) and 'r' (redistribute) keys, both of
// which call the same admin actions hostfleetctl exposes from the
// command line.
type Model struct {
	client *adminsocket.Client
	theme  Theme

	status   statusSummary
	hosts    []hostSummary
	selected int
	detail   *showHostResult

	lastError   string
	lastRefresh time.Time
	actionMsg   string

	width, height int
}

// NewModel returns a Model polling client for fleet state.
func NewModel(client *adminsocket.Client) Model {
	return Model{client: client, theme: DefaultTheme}
}

func (m Model) Init() tea.Cmd {
	return m.refresh()
}

func (m Model) refresh() tea.Cmd {
	client := m.client
	selectedHostID := ""
	if m.selected >= 0 && m.selected < len(m.hosts) {
		selectedHostID = m.hosts[m.selected].HostID
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var status statusSummary
		if err := client.Call(ctx, "status", nil, &status); err != nil {
			return refreshMsg{err: err}
		}

		var hostsResult struct {
			Hosts []hostSummary `cbor:"hosts"`
		}
		if err := client.Call(ctx, "list_hosts", nil, &hostsResult); err != nil {
			return refreshMsg{err: err}
		}

		var detail *showHostResult
		if selectedHostID != "" {
			var d showHostResult
			if err := client.Call(ctx, "show_host", map[string]any{"host_id": selectedHostID}, &d); err == nil {
				detail = &d
			}
		}

		return refreshMsg{status: status, hosts: hostsResult.Hosts, detail: detail}
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), scheduleTick())

	case refreshMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
			return m, nil
		}
		m.lastError = ""
		m.status = msg.status
		sort.Slice(msg.hosts, func(i, j int) bool { return msg.hosts[i].HostID < msg.hosts[j].HostID })
		m.hosts = msg.hosts
		m.detail = msg.detail
		m.lastRefresh = time.Now()
		if m.selected >= len(m.hosts) {
			m.selected = len(m.hosts) - 1
		}
		if m.selected < 0 && len(m.hosts) > 0 {
			m.selected = 0
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, m.refresh()
		case "down", "j":
			if m.selected < len(m.hosts)-1 {
				m.selected++
			}
			return m, m.refresh()
		case "h":
			m.actionMsg = "healing orphans..."
			return m, m.runAction("heal_orphans")
		case "r":
			m.actionMsg = "redistributing..."
			return m, m.runAction("redistribute")
		}
	}
	return m, nil
}

// runAction fires a one-shot admin action and folds the outcome into
// actionMsg for display, then triggers an immediate refresh.
func (m Model) runAction(action string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var result map[string]any
		if err := client.Call(ctx, action, nil, &result); err != nil {
			return refreshMsg{err: err}
		}
		return tickMsg(time.Now())
	}
}

func (m Model) View() string {
	var b strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderFG).Render("hostfleet monitor")
	fmt.Fprintf(&b, "%s\n", header)

	summary := fmt.Sprintf("hosts: %d active / %d stale / %d error / %d total  ·  workers: %d",
		m.status.ActiveHosts, m.status.StaleHosts, m.status.ErrorHosts, m.status.TotalHosts, m.status.TotalWorkers)
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(summary))
	b.WriteString("\n\n")

	if len(m.hosts) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("no hosts registered"))
		b.WriteString("\n")
	}

	for i, host := range m.hosts {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		statusStyle := lipgloss.NewStyle().Foreground(m.theme.StatusColor(host.Status))
		healthStyle := lipgloss.NewStyle().Foreground(m.theme.HealthColor(host.HealthScore))
		line := fmt.Sprintf("%s%-20s %s  health=%s  workers=%d",
			cursor, host.HostID,
			statusStyle.Render(fmt.Sprintf("%-10s", host.Status)),
			healthStyle.Render(fmt.Sprintf("%3d", host.HealthScore)),
			host.WorkerCount,
		)
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.detail != nil {
		b.WriteString("\n")
		circuitStyle := lipgloss.NewStyle().Foreground(m.theme.CircuitColor(m.detail.CircuitState))
		fmt.Fprintf(&b, "selected: %s  errors=%d  workers=%v\n",
			m.detail.HostID, m.detail.ErrorCount, m.detail.Workers)
		if m.detail.CircuitState != "" {
			fmt.Fprintf(&b, "circuit: %s  backoff=%dms  trips=%d\n",
				circuitStyle.Render(m.detail.CircuitState), m.detail.BackoffMS, m.detail.CrashCount)
		}
	}

	b.WriteString("\n")
	if m.actionMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.DegradedColor).Render(m.actionMsg))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.UnhealthyColor).Render("error: " + m.lastError))
		b.WriteString("\n")
	}
	if !m.lastRefresh.IsZero() {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).
			Render(fmt.Sprintf("last refresh %s", humanize.Time(m.lastRefresh))))
		b.WriteString("\n")
	}

	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).
		Render("↑/↓ select · h heal orphans · r redistribute · q quit"))

	return b.String()
}
