package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/pkg/records"
)

func sampleList() records.List {
	v := 1500.0
	return records.Merge(nil, []records.Record{
		records.New("Ana", "123", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), &v),
		records.New("Bia", "456", time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), nil),
	})
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestFeedCoalesces(t *testing.T) {
	feed := NewFeed(4)
	feed.SetState(tally.StateLive)
	feed.SetRecords(sampleList())
	feed.SetNotice("hello")

	msg := feed.Next()()
	snap, ok := msg.(SnapshotMsg)
	require.True(t, ok)
	assert.Equal(t, tally.StateLive, snap.State)
	assert.Equal(t, 2, snap.Records.Len())
	assert.Equal(t, tally.Progress{Count: 2, Target: 4, Percent: 50}, snap.Progress)
	assert.Equal(t, "hello", snap.Notice)
}

func TestFeedClose(t *testing.T) {
	feed := NewFeed(10)
	feed.Close()
	feed.Close()
	assert.Nil(t, feed.Next()())
}

func TestModelView(t *testing.T) {
	feed := NewFeed(4)
	m := NewModel(feed)

	updated, cmd := m.Update(SnapshotMsg{
		Records:  sampleList(),
		Progress: tally.NewProgress(2, 4),
		State:    tally.StateLive,
		Notice:   "+ Bia (456)",
	})
	assert.NotNil(t, cmd)

	view := updated.View()
	assert.Contains(t, view, "live")
	assert.Contains(t, view, "2/4")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "Ana")
	assert.Contains(t, view, "R$ 1.500,00")
	assert.Contains(t, view, "+ Bia (456)")
	assert.Less(t, strings.Index(view, "Bia"), strings.Index(view, "Ana"), "newest first")
}

func TestModelEmptyState(t *testing.T) {
	m := NewModel(NewFeed(100))
	assert.Contains(t, m.View(), "No records yet")
	assert.Contains(t, m.View(), "0/100")
	assert.NotContains(t, m.View(), "reset")
}

func TestModelQuit(t *testing.T) {
	m := NewModel(NewFeed(100))
	_, cmd := m.Update(keyPress('q'))
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestModelResetConfirm(t *testing.T) {
	called := 0
	m := NewModel(NewFeed(100), WithReset(func(context.Context) error {
		called++
		return nil
	}))
	assert.Contains(t, m.View(), "r reset")

	updated, cmd := m.Update(keyPress('r'))
	assert.Nil(t, cmd)
	assert.Contains(t, updated.View(), "y to confirm")

	updated, cmd = updated.Update(keyPress('y'))
	require.NotNil(t, cmd)
	assert.Contains(t, updated.View(), "resetting...")

	msg := cmd()
	assert.Equal(t, 1, called)
	updated, _ = updated.Update(msg)
	assert.NotContains(t, updated.View(), "resetting...")
}

func TestModelResetCancel(t *testing.T) {
	called := 0
	m := NewModel(NewFeed(100), WithReset(func(context.Context) error {
		called++
		return nil
	}))

	updated, _ := m.Update(keyPress('r'))
	updated, cmd := updated.Update(keyPress('n'))
	assert.Nil(t, cmd)
	assert.Zero(t, called)
	assert.NotContains(t, updated.View(), "y to confirm")
}

func TestModelResetFailure(t *testing.T) {
	m := NewModel(NewFeed(100), WithReset(func(context.Context) error {
		return errors.New("sheet locked")
	}))

	updated, _ := m.Update(keyPress('r'))
	updated, cmd := updated.Update(keyPress('y'))
	updated, _ = updated.Update(cmd())
	assert.Contains(t, updated.View(), "reset failed: sheet locked")
}

func TestModelWindowSize(t *testing.T) {
	m := NewModel(NewFeed(100))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, maxBarWidth, updated.(Model).bar.Width)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 30, Height: 40})
	assert.Equal(t, 22, updated.(Model).bar.Width)
}

func TestFeedLogWriter(t *testing.T) {
	feed := NewFeed(10)
	w := feed.LogWriter()

	_, err := w.Write([]byte(`{"level":"info","message":"Restored records"}`))
	require.NoError(t, err)
	assert.Equal(t, "Restored records", feed.Snapshot().Notice)

	_, _ = w.Write([]byte(`{"level":"debug","message":"Applied record"}`))
	assert.Equal(t, "Restored records", feed.Snapshot().Notice)

	_, _ = w.Write([]byte(`{"level":"warn","message":"Snapshot unavailable"}`))
	assert.Equal(t, "warn: Snapshot unavailable", feed.Snapshot().Notice)

	n, err := w.Write([]byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, len("not json"), n)
	assert.Equal(t, "warn: Snapshot unavailable", feed.Snapshot().Notice)
}
