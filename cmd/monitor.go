// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/hircpd/internal/controller"
	"github.com/Thermoquad/hircpd/internal/driver"
	"github.com/Thermoquad/hircpd/internal/session"
	"github.com/Thermoquad/hircpd/pkg/hircp"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxEvents    = 100
	tickInterval = 250 * time.Millisecond
)

// eventLog collects log lines written while the monitor owns the terminal.
type eventLog struct {
	mu      sync.Mutex
	partial []byte
	lines   []string
	max     int
}

func newEventLog(max int) *eventLog {
	return &eventLog{max: max}
}

func (e *eventLog) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.partial = append(e.partial, p...)
	for {
		i := bytes.IndexByte(e.partial, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(e.partial[:i])); line != "" {
			e.lines = append(e.lines, line)
		}
		e.partial = e.partial[i+1:]
	}
	if len(e.lines) > e.max {
		e.lines = e.lines[len(e.lines)-e.max:]
	}
	return len(p), nil
}

// Tail returns up to n of the newest lines, oldest first.
func (e *eventLog) Tail(n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.lines) {
		n = len(e.lines)
	}
	out := make([]string, n)
	copy(out, e.lines[len(e.lines)-n:])
	return out
}

// Monitor model
type model struct {
	ctrl     *controller.Controller
	events   *eventLog
	status   controller.Status
	fingers  [hircp.NumServos]progress.Model
	sensors  [hircp.NumSensors]progress.Model
	width    int
	height   int
	quitting bool
}

type tickMsg time.Time

func newMonitorModel(ctrl *controller.Controller, events *eventLog) model {
	m := model{
		ctrl:   ctrl,
		events: events,
		status: ctrl.Snapshot(),
		width:  80,
		height: 24,
	}
	for i := range m.fingers {
		m.fingers[i] = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	}
	for i := range m.sensors {
		m.sensors[i] = progress.New(progress.WithGradient("#5A56E0", "#EE6FF8"), progress.WithoutPercentage())
	}
	m.resize()
	return m
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tickMsg:
		m.status = m.ctrl.Snapshot()
		return m, tickCmd()
	}

	return m, nil
}

func (m *model) resize() {
	w := m.width - 24
	if w > 50 {
		w = 50
	}
	if w < 10 {
		w = 10
	}
	for i := range m.fingers {
		m.fingers[i].Width = w
	}
	for i := range m.sensors {
		m.sensors[i].Width = w
	}
}

// formatAge formats a session age as a short human-friendly string
func formatAge(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	st := m.status
	sess := st.Session

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("HIRCPD - CONTROLLER MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Listening: %s | Sessions: %d | Press 'q' to quit",
		st.Listen, st.Sessions)))
	s.WriteString("\n\n")

	// Session
	var sb strings.Builder
	sb.WriteString(statsLabelStyle.Render("Session"))
	sb.WriteString("\n")
	switch sess.State {
	case session.Active:
		sb.WriteString(statsValueStyle.Render(fmt.Sprintf("● %s", sess.State)))
	case session.Idle:
		sb.WriteString(headerStyle.Render(fmt.Sprintf("○ %s", sess.State)))
	default:
		sb.WriteString(warningStyle.Render(fmt.Sprintf("◐ %s", sess.State)))
	}
	if sess.ID > 0 {
		sb.WriteString(headerStyle.Render(fmt.Sprintf("  #%d %s", sess.ID, sess.Remote)))
		if sess.State != session.Idle && !sess.StartedAt.IsZero() {
			sb.WriteString(headerStyle.Render(" for " + formatAge(time.Since(sess.StartedAt))))
		}
	}
	sb.WriteString("\n")
	if sess.Mode != "" {
		sb.WriteString(fmt.Sprintf("Mode: %s", statsValueStyle.Render(sess.Mode)))
	}
	if sess.LastGrasp != "" {
		sb.WriteString(fmt.Sprintf("   Grasp: %s", statsValueStyle.Render(sess.LastGrasp)))
	}
	sb.WriteString(fmt.Sprintf("   Dispatched: %s", statsValueStyle.Render(fmt.Sprintf("%d", sess.Dispatched))))
	s.WriteString(boxStyle.Render(sb.String()))
	s.WriteString("\n")

	// Hand
	var hb strings.Builder
	hb.WriteString(statsLabelStyle.Render("Fingers"))
	hb.WriteString("\n")
	for i, ch := range driver.Channels() {
		deg := sess.FingerTargets[i]
		hb.WriteString(fmt.Sprintf("%-7s %s %3d°\n", ch, m.fingers[i].ViewAs(float64(deg)/hircp.MaxFingerDegrees), deg))
	}
	hb.WriteString("\n")
	hb.WriteString(statsLabelStyle.Render("Fingertip Sensors"))
	hb.WriteString("\n")
	for i, ch := range driver.Channels() {
		r := sess.Sensors[i]
		hb.WriteString(fmt.Sprintf("%-7s %s %4d\n", ch, m.sensors[i].ViewAs(float64(r)/hircp.MaxSensorReading), r))
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(hb.String(), "\n")))
	s.WriteString("\n")

	// Statistics
	stats := st.Statistics
	var validPercent float64
	if stats.TotalPackets > 0 {
		validPercent = float64(stats.TotalPackets-stats.InvalidPackets) * 100.0 / float64(stats.TotalPackets)
	}
	var tb strings.Builder
	tb.WriteString(statsLabelStyle.Render("Statistics"))
	tb.WriteString("\n")
	tb.WriteString(fmt.Sprintf("Packets: %s  Valid: %s  Rate: %s\n",
		statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalPackets)),
		statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.PacketRate))))
	tb.WriteString(fmt.Sprintf("DACKs: %s  Grasp open/close: %s\n",
		statsValueStyle.Render(fmt.Sprintf("%d", stats.DataAcksSent)),
		statsValueStyle.Render(fmt.Sprintf("%d/%d", stats.GraspOpen, stats.GraspClose))))
	errLine := fmt.Sprintf("Invalid: %d  Bad mode: %d  Handshake fail: %d  Transport: %d  Driver: %d",
		stats.InvalidPackets, stats.InvalidModes, stats.HandshakeFailures, stats.TransportErrors, stats.DriverErrors)
	if stats.InvalidPackets+stats.InvalidModes+stats.HandshakeFailures+stats.TransportErrors+stats.DriverErrors > 0 {
		tb.WriteString(errorStyle.Render(errLine))
	} else {
		tb.WriteString(headerStyle.Render(errLine))
	}
	s.WriteString(boxStyle.Render(tb.String()))
	s.WriteString("\n")

	// Recent events, sized to what is left of the screen
	avail := m.height - strings.Count(s.String(), "\n") - 4
	if avail < 3 {
		avail = 3
	}
	var eb strings.Builder
	eb.WriteString(statsLabelStyle.Render("Recent Events"))
	lines := m.events.Tail(avail)
	if len(lines) == 0 {
		eb.WriteString("\n")
		eb.WriteString(headerStyle.Render("(none)"))
	}
	for _, line := range lines {
		eb.WriteString("\n")
		eb.WriteString(line)
	}
	s.WriteString(boxStyle.Render(eb.String()))

	return s.String()
}
