// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pcgmon/internal/feature"
	"pcgmon/internal/transport"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// Rows used by the title, status, marker and help lines.
	chromeRows  = 7
	minPlotRows = 3
)

var (
	bpmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	waveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	peakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))
)

type monitorKeys struct {
	Quit key.Binding
}

var defaultMonitorKeys = monitorKeys{
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type snapshotMsg transport.Snapshot

type sessionEndedMsg struct{ err error }

// MonitorModel is the bubbletea model behind Monitor. It redraws the
// waveform envelope, detected peaks and heart rate for every snapshot.
type MonitorModel struct {
	title  string
	width  int
	height int
	keys   monitorKeys

	snap   transport.Snapshot
	have   bool
	rhythm feature.Rhythm
	ended  bool
	err    error
}

func NewMonitorModel(title string) MonitorModel {
	return MonitorModel{
		title:  title,
		width:  defaultWidth,
		height: defaultHeight,
		keys:   defaultMonitorKeys,
	}
}

func (m MonitorModel) Init() tea.Cmd { return nil }

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 20)
		m.height = max(msg.Height, chromeRows+minPlotRows)

	case snapshotMsg:
		m.snap = transport.Snapshot(msg)
		m.have = true
		m.rhythm = feature.Summarize(m.snap.Peaks)

	case sessionEndedMsg:
		m.ended = true
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m MonitorModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	if !m.have {
		sb.WriteString(infoStyle.Render("Waiting for samples..."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.statusLine())
		sb.WriteString("\n\n")
		sb.WriteString(m.plot())
	}

	sb.WriteString("\n")
	switch {
	case m.err != nil:
		sb.WriteString(peakStyle.Render(fmt.Sprintf("Session failed: %v", m.err)))
		sb.WriteString("\n")
	case m.ended:
		sb.WriteString(dimStyle.Render("Session ended."))
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(m.keys.Quit.Help().Key + ": " + m.keys.Quit.Help().Desc))
	return sb.String()
}

func (m MonitorModel) statusLine() string {
	status := fmt.Sprintf("%s  %.2fs  %d peaks", m.snap.Mode, m.snap.Duration(), len(m.snap.Peaks))
	if m.rhythm.Count > 2 {
		status += fmt.Sprintf("  interval %.3fs ± %.3fs", m.rhythm.MeanInterval, m.rhythm.IntervalStdDev)
	}
	return bpmStyle.Render(fmt.Sprintf("BPM: %.1f", m.snap.BPM)) + "  " + infoStyle.Render(status)
}

// plot draws the min/max envelope scaled to the loudest sample, followed by a
// marker row with a caret under every detected peak.
func (m MonitorModel) plot() string {
	rows := max(m.height-chromeRows, minPlotRows)
	cols := m.width

	env := transport.Envelope(m.snap.Samples, cols)
	if len(env) == 0 {
		return dimStyle.Render(strings.Repeat("─", cols)) + "\n"
	}

	peak := 1
	for _, e := range env {
		peak = max(peak, abs(int(e.Min)), abs(int(e.Max)))
	}
	rowOf := func(v int16) int {
		// Row 0 is the top (+peak), rows-1 the bottom (-peak).
		return (peak - int(v)) * (rows - 1) / (2 * peak)
	}

	grid := make([][]byte, rows)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(" ", len(env)))
	}
	for c, e := range env {
		for r := rowOf(e.Max); r <= rowOf(e.Min); r++ {
			grid[r][c] = '|'
		}
	}

	var sb strings.Builder
	for _, line := range grid {
		sb.WriteString(waveStyle.Render(string(line)))
		sb.WriteString("\n")
	}

	markers := []byte(strings.Repeat(" ", len(env)))
	total := len(m.snap.Samples)
	for _, t := range m.snap.Peaks {
		c := int(t * m.snap.SampleRate * float64(len(env)) / float64(total))
		if c >= 0 && c < len(markers) {
			markers[c] = '^'
		}
	}
	sb.WriteString(peakStyle.Render(string(markers)))
	sb.WriteString("\n")
	return sb.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Monitor is a Sink driving a full-screen bubbletea program. Render never
// blocks: snapshots are coalesced so the UI always draws the latest one.
type Monitor struct {
	program *tea.Program
	pending chan transport.Snapshot
}

// NewMonitor creates the monitor program. Extra options are passed to
// tea.NewProgram.
func NewMonitor(title string, opts ...tea.ProgramOption) *Monitor {
	return &Monitor{
		program: tea.NewProgram(NewMonitorModel(title), opts...),
		pending: make(chan transport.Snapshot, 1),
	}
}

func (m *Monitor) Render(snap transport.Snapshot) {
	for {
		select {
		case m.pending <- snap:
			return
		default:
		}
		// Replace the stale snapshot the UI has not picked up yet.
		select {
		case <-m.pending:
		default:
		}
	}
}

// SessionEnded informs the UI that processing has finished.
func (m *Monitor) SessionEnded(err error) {
	go m.program.Send(sessionEndedMsg{err: err})
}

// Run blocks until the user quits or ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				m.program.Quit()
				return
			case snap := <-m.pending:
				m.program.Send(snapshotMsg(snap))
			}
		}
	}()

	_, err := m.program.Run()
	return err
}

var _ transport.Sink = (*Monitor)(nil)
