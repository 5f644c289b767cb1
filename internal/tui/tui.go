// Package tui renders dashboard snapshots in the terminal.
//
// This package is internal to swarmdeck and backs the "watch" CLI
// command: a read-only terminal view of the same snapshots the web
// dashboard receives, for operators working over SSH. Stream viewports
// cannot be embedded in a terminal, so the agent panels show status and
// progress only.
package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/agentvillage/swarmdeck"
)

const (
	maxChatRows = 8
	maxEvalRows = 6
)

// styles groups the lipgloss styles used by the view.
type styles struct {
	header     lipgloss.Style
	meta       lipgloss.Style
	panel      lipgloss.Style
	panelTitle lipgloss.Style
	agentName  lipgloss.Style
	muted      lipgloss.Style
	score      lipgloss.Style
	statusDot  map[swarmdeck.AgentStatus]lipgloss.Style
	footer     lipgloss.Style
}

func newStyles() styles {
	var (
		border = lipgloss.Color("240")
		muted  = lipgloss.Color("245")
		accent = lipgloss.Color("39")
		ok     = lipgloss.Color("42")
		warn   = lipgloss.Color("214")
		bad    = lipgloss.Color("203")
	)
	return styles{
		header:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		meta:       lipgloss.NewStyle().Foreground(muted),
		panel:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		panelTitle: lipgloss.NewStyle().Bold(true).Foreground(muted),
		agentName:  lipgloss.NewStyle().Bold(true),
		muted:      lipgloss.NewStyle().Foreground(muted),
		score:      lipgloss.NewStyle().Bold(true).Foreground(ok),
		statusDot: map[swarmdeck.AgentStatus]lipgloss.Style{
			swarmdeck.AgentIdle:    lipgloss.NewStyle().Foreground(warn),
			swarmdeck.AgentRunning: lipgloss.NewStyle().Foreground(ok),
			swarmdeck.AgentError:   lipgloss.NewStyle().Foreground(bad),
		},
		footer: lipgloss.NewStyle().Foreground(muted),
	}
}

// snapshotMsg carries a rebuilt snapshot into the update loop.
type snapshotMsg struct {
	snapshot *swarmdeck.DashboardSnapshot
}

// Model is the bubbletea model for the watch view.
type Model struct {
	title     string
	snapshots <-chan *swarmdeck.DashboardSnapshot

	snapshot *swarmdeck.DashboardSnapshot
	width    int
	spinner  spinner.Model
	styles   styles
}

// New creates the watch model. Snapshots arrive on the provided channel;
// the view shows a waiting state until the first one lands.
func New(title string, snapshots <-chan *swarmdeck.DashboardSnapshot) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return Model{
		title:     title,
		snapshots: snapshots,
		spinner:   sp,
		styles:    newStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForSnapshot())
}

// waitForSnapshot blocks on the snapshot channel as a tea command.
func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snapshots
		if !ok {
			return tea.Quit()
		}
		return snapshotMsg{snapshot: snap}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case snapshotMsg:
		m.snapshot = msg.snapshot
		return m, m.waitForSnapshot()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.header.Render(m.title))
	if m.snapshot == nil {
		b.WriteString("\n\n" + m.spinner.View() + " waiting for first snapshot...\n")
		b.WriteString(m.styles.footer.Render("\nq to quit"))
		return b.String()
	}

	b.WriteString(m.styles.meta.Render(fmt.Sprintf("  v%d · %s",
		m.snapshot.Version, displayTime(m.snapshot.GeneratedAt))))
	b.WriteString("\n\n")

	b.WriteString(m.renderAgents())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderEvaluator(), " ", m.renderChat()))
	b.WriteString("\n")
	b.WriteString(m.styles.footer.Render("q to quit"))
	return b.String()
}

func (m Model) renderAgents() string {
	var rows []string
	rows = append(rows, m.styles.panelTitle.Render("AGENTS"))

	if len(m.snapshot.Agents) == 0 {
		rows = append(rows, m.styles.muted.Render("no agents reported"))
	}
	for _, a := range m.snapshot.Agents {
		dot := m.styles.statusDot[a.Status].Render("●")
		line := fmt.Sprintf("%s %s  %-8s", dot, m.styles.agentName.Render(padRight(a.AgentID, 12)), a.Status)
		if a.Progress != nil {
			line += fmt.Sprintf("  %s %3.0f%%  %s",
				progressBar(a.Progress.ProgressPercent, 20),
				a.Progress.ProgressPercent,
				truncate(a.Progress.Message, 40),
			)
		}
		if !a.LastActivityAt.IsZero() {
			line += m.styles.muted.Render("  " + displayTime(a.LastActivityAt))
		}
		rows = append(rows, line)
	}
	return m.styles.panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderEvaluator() string {
	ev := m.snapshot.Evaluator
	var rows []string
	rows = append(rows, m.styles.panelTitle.Render("EVALUATOR"))
	rows = append(rows, m.styles.score.Render(m.snapshot.AverageScorePercent)+
		m.styles.muted.Render(" avg overall score"))
	rows = append(rows, m.styles.muted.Render(fmt.Sprintf("%d evaluations · %d agents · %d tasks",
		ev.TotalEvaluations, ev.AgentsEvaluated, ev.TasksEvaluated)))

	for i, rec := range ev.Recent {
		if i >= maxEvalRows {
			break
		}
		rows = append(rows, fmt.Sprintf("task %-4d %-10s %5.1f  %s",
			rec.TaskID, truncate(rec.AgentID, 10), rec.OverallScore(),
			m.styles.muted.Render(displayTime(rec.EvaluatedAt))))
	}
	return m.styles.panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderChat() string {
	var rows []string
	rows = append(rows, m.styles.panelTitle.Render("AGENT RESPONSES"))

	if len(m.snapshot.Chat) == 0 {
		rows = append(rows, m.styles.muted.Render("no responses yet"))
	}
	for i, msg := range m.snapshot.Chat {
		if i >= maxChatRows {
			break
		}
		rows = append(rows, fmt.Sprintf("%s %s",
			m.styles.agentName.Render(padRight(msg.AgentID, 10)),
			truncate(msg.Message, 60)))
		rows = append(rows, m.styles.muted.Render("  "+displayTime(msg.Timestamp)))
	}
	return m.styles.panel.Render(strings.Join(rows, "\n"))
}

// progressBar renders a fixed-width unicode progress bar.
func progressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// padRight and truncate measure in runes, not bytes; chat and progress
// text is arbitrary agent output and byte slicing could split a rune.
func padRight(s string, n int) string {
	width := utf8.RuneCountInString(s)
	if width >= n {
		return s
	}
	return s + strings.Repeat(" ", n-width)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}

// Run starts the watch program and blocks until the user quits or the
// snapshot channel closes.
func Run(title string, snapshots <-chan *swarmdeck.DashboardSnapshot) error {
	p := tea.NewProgram(New(title, snapshots), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// displayTime keeps the zero-time case readable; humanize.Time would
// render it as "a long while ago".
func displayTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
