// Package tui is the terminal dashboard of the watch command: a progress bar
// against the target, the lifecycle state and the latest records.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/internal/cmd/table"
)

const (
	defaultRows   = 10
	maxBarWidth   = 60
	resetTimeout  = 30 * time.Second
	horizontalPad = 4
)

// ResetFunc performs the reset command.
type ResetFunc func(ctx context.Context) error

// resetDoneMsg reports the outcome of a reset started from the dashboard.
type resetDoneMsg struct {
	err error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	feed  *Feed
	keys  KeyMap
	bar   progress.Model
	reset ResetFunc
	rows  int

	snap       Snapshot
	confirming bool
	resetting  bool
	failure    string
}

// Option configures a Model.
type Option func(*Model)

// WithReset enables the reset key.
func WithReset(fn ResetFunc) Option {
	return func(m *Model) {
		m.reset = fn
	}
}

// WithRows sets how many of the latest records are listed.
func WithRows(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.rows = n
		}
	}
}

// NewModel creates a dashboard fed by feed.
func NewModel(feed *Feed, opts ...Option) Model {
	m := Model{
		feed: feed,
		keys: DefaultKeyMap,
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		rows: defaultRows,
		snap: feed.Snapshot(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.feed.Next()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.bar.Width = min(maxBarWidth, max(10, msg.Width-horizontalPad*2))
		return m, nil

	case SnapshotMsg:
		m.snap = Snapshot(msg)
		return m, tea.Batch(m.bar.SetPercent(m.snap.Progress.Ratio()), m.feed.Next())

	case resetDoneMsg:
		m.resetting = false
		if msg.err != nil {
			m.failure = fmt.Sprintf("reset failed: %v", msg.err)
		} else {
			m.failure = ""
			m.feed.SetNotice("reset completed")
		}
		return m, nil

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		m.confirming = false
		if key.Matches(msg, m.keys.Confirm) {
			m.resetting = true
			return m, m.runReset()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Reset) && m.reset != nil && !m.resetting:
		m.confirming = true
	}
	return m, nil
}

func (m Model) runReset() tea.Cmd {
	fn := m.reset
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()
		return resetDoneMsg{err: fn(ctx)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	s := m.snap
	b.WriteString(titleStyle.Render("tally"))
	b.WriteString("  ")
	b.WriteString(stateStyle(s.State == tally.StateLive).Render(s.State.String()))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(s.Progress.Ratio()))
	b.WriteString("\n")
	b.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", s.Progress.Count, s.Progress.Target)))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d%%", s.Progress.Percent)))
	if total := s.Records.Total(); total > 0 {
		b.WriteString(mutedStyle.Render("  total " + table.FormatValue(&total)))
	}
	b.WriteString("\n\n")

	if s.Records.Len() == 0 {
		b.WriteString(mutedStyle.Render("No records yet"))
		b.WriteString("\n")
	}
	for _, r := range s.Records.Latest(m.rows) {
		fmt.Fprintf(&b, "%s  %-28s %-24s %s\n",
			mutedStyle.Render(table.FormatTime(r.Timestamp.Time)),
			table.Truncate(r.Name, 28),
			table.Truncate(r.ProcessNumber, 24),
			table.FormatValue(r.Value))
	}
	b.WriteString("\n")

	switch {
	case m.confirming:
		b.WriteString(promptStyle.Render("Reset every record on the backend? y to confirm, any other key to cancel"))
	case m.resetting:
		b.WriteString(mutedStyle.Render("resetting..."))
	case m.failure != "":
		b.WriteString(errorStyle.Render(m.failure))
	case s.Notice != "":
		b.WriteString(noticeStyle.Render(s.Notice))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.help()))

	return boxStyle.Render(b.String())
}

func (m Model) help() string {
	bindings := []key.Binding{m.keys.Quit}
	if m.reset != nil {
		bindings = append([]key.Binding{m.keys.Reset}, bindings...)
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
