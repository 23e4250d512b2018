package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/pkg/records"
)

// Snapshot is what the dashboard renders.
type Snapshot struct {
	Records  records.List
	Progress tally.Progress
	State    tally.State
	Notice   string
}

// SnapshotMsg delivers a new snapshot through the bubbletea loop.
type SnapshotMsg Snapshot

// Feed coalesces controller hook calls into snapshots for the dashboard.
// Hooks never block: when the dashboard is behind, intermediate snapshots
// are skipped and only the latest is delivered.
type Feed struct {
	mu     sync.Mutex
	snap   Snapshot
	target int
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewFeed creates a feed reporting progress against target.
func NewFeed(target int) *Feed {
	return &Feed{
		snap:   Snapshot{Progress: tally.NewProgress(0, target)},
		target: target,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Attach registers the feed's hooks on c.
func (f *Feed) Attach(c tally.Client) {
	c.OnChange(f.SetRecords)
	c.OnStateChange(func(_, to tally.State) { f.SetState(to) })
	c.OnRecord(func(r records.Record) {
		f.SetNotice(fmt.Sprintf("+ %s (%s)", r.Name, r.ProcessNumber))
	})
}

// SetRecords replaces the list.
func (f *Feed) SetRecords(list records.List) {
	f.update(func(s *Snapshot) {
		s.Records = list
		s.Progress = tally.NewProgress(list.Len(), f.target)
	})
}

// SetState records a lifecycle transition.
func (f *Feed) SetState(state tally.State) {
	f.update(func(s *Snapshot) { s.State = state })
}

// SetNotice sets the status line.
func (f *Feed) SetNotice(notice string) {
	f.update(func(s *Snapshot) { s.Notice = notice })
}

// Snapshot returns the latest snapshot.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Close releases a pending Next.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// Next returns a command that waits for the next change.
func (f *Feed) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.notify:
			return SnapshotMsg(f.Snapshot())
		case <-f.done:
			return nil
		}
	}
}

func (f *Feed) update(fn func(*Snapshot)) {
	f.mu.Lock()
	fn(&f.snap)
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// LogWriter returns a writer for JSON log lines that shows each message as
// the notice. Debug and trace lines are dropped.
func (f *Feed) LogWriter() io.Writer {
	return logWriter{feed: f}
}

type logWriter struct {
	feed *Feed
}

func (w logWriter) Write(p []byte) (int, error) {
	var line struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(p, &line); err != nil || line.Message == "" {
		return len(p), nil
	}
	switch line.Level {
	case "debug", "trace":
	case "warn", "error":
		w.feed.SetNotice(line.Level + ": " + line.Message)
	default:
		w.feed.SetNotice(line.Message)
	}
	return len(p), nil
}
