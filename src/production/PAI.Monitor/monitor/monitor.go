// Package monitor renders the latest plant readout as a terminal traffic light.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// Source is anything that can produce the latest readout
type Source interface {
	Latest(ctx context.Context) (*models.Readout, error)
}

type tickMsg time.Time

type readoutMsg struct {
	readout *models.Readout
	time    time.Time
}

type noDataMsg struct{ time time.Time }

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// Model is the BubbleTea model for the readout monitor.
type Model struct {
	source   Source
	interval time.Duration
	timeout  time.Duration

	readout  *models.Readout
	noData   bool
	err      error
	lastPoll time.Time
	width    int
	paused   bool
}

func New(source Source, interval, timeout time.Duration) Model {
	return Model{
		source:   source,
		interval: interval,
		timeout:  timeout,
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) poll() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	readout, err := m.source.Latest(ctx)
	switch {
	case errors.Is(err, ErrNoData):
		return noDataMsg{time: time.Now()}
	case err != nil:
		return errMsg{err}
	}
	return readoutMsg{readout: readout, time: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.poll, m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.poll
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.poll, m.tickCmd())

	case readoutMsg:
		m.readout = msg.readout
		m.noData = false
		m.err = nil
		m.lastPoll = msg.time

	case noDataMsg:
		m.readout = nil
		m.noData = true
		m.err = nil
		m.lastPoll = msg.time

	case errMsg:
		// keep the last good readout on screen
		m.err = msg.err
	}

	return m, nil
}

var (
	colorTitleFg = lipgloss.Color("51")
	colorLabel   = lipgloss.Color("252")
	colorDim     = lipgloss.Color("240")
	colorGreen   = lipgloss.Color("78")
	colorYellow  = lipgloss.Color("220")
	colorRed     = lipgloss.Color("196")
	colorBorder  = lipgloss.Color("62")
)

func statusColor(c models.StatusColor) lipgloss.Color {
	switch c {
	case models.StatusGreen:
		return colorGreen
	case models.StatusYellow:
		return colorYellow
	default:
		return colorRed
	}
}

func (m Model) View() string {
	width := m.width - 2
	if width < 40 {
		width = 40
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(colorTitleFg).Render("PLANTAI MONITOR")
	sections := []string{title}

	if m.err != nil {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true).
			Render(fmt.Sprintf("ERROR: %v", m.err)))
	}

	switch {
	case m.readout != nil:
		sections = append(sections, m.renderReadout(width))
	case m.noData:
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(1, 0).
			Render("No data yet. Waiting for the first sensor reading..."))
	default:
		sections = append(sections, lipgloss.NewStyle().Foreground(colorDim).Render("Connecting..."))
	}

	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderReadout(width int) string {
	r := m.readout
	color := statusColor(r.StatusColor)

	light := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(color).
		Padding(0, 2).
		Render(strings.ToUpper(string(r.StatusColor)))

	label := lipgloss.NewStyle().Foreground(colorLabel)
	lines := []string{
		fmt.Sprintf("%s  severity %d", light, r.SeverityScore),
		label.Render(fmt.Sprintf("reading  %s", r.SensorDataID)),
		label.Render(fmt.Sprintf("at       %s", r.Timestamp.Format(time.RFC3339))),
	}
	if s := r.SensorReadings; s != nil {
		lines = append(lines, label.Render(fmt.Sprintf(
			"temp %.1f°C  pressure %.1f hPa  humidity %.1f%%  soil %.1f%%",
			s.Temperature, s.Pressure, s.Humidity, s.SoilMoisture)))
	}
	lines = append(lines, "", lipgloss.NewStyle().Width(width-4).Render(r.AIReply))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	state := "live"
	if m.paused {
		state = "paused"
	}
	polled := "never"
	if !m.lastPoll.IsZero() {
		polled = m.lastPoll.Format("15:04:05")
	}
	return lipgloss.NewStyle().
		Foreground(colorDim).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		Render(fmt.Sprintf("%s · last poll %s · r refresh · p pause · q quit", state, polled))
}
