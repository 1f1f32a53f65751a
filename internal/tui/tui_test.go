package tui_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"twlaunch/internal/launcher"
	"twlaunch/internal/tui"
)

// stubQuerier answers every query with a fixed item list.
type stubQuerier struct {
	items []launcher.Item
}

func (q *stubQuerier) HandleQuery(_ context.Context, keyword, argument string) launcher.Response {
	return launcher.RenderList(q.items...)
}

func newTestModel(t *testing.T, q tui.Querier) *teatest.TestModel {
	t.Helper()
	return teatest.NewTestModel(t, tui.New(q), teatest.WithInitialTermSize(80, 24))
}

func sendRunes(tm *teatest.TestModel, s string) {
	for _, r := range s {
		tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTypingQueriesAndRendersItems(t *testing.T) {
	q := &stubQuerier{items: []launcher.Item{
		{Title: "Write report", Description: "work · urgency 9.1", OnEnter: launcher.Hide()},
		{Title: "Buy milk", OnEnter: launcher.Hide()},
	}}
	tm := newTestModel(t, q)

	sendRunes(tm, "tl")

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Write report")) && bytes.Contains(bts, []byte("Buy milk"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestEmptyInputShowsHint(t *testing.T) {
	tm := newTestModel(t, &stubQuerier{})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("type a keyword query"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestCursorMovesBetweenItems(t *testing.T) {
	q := &stubQuerier{items: []launcher.Item{
		{Title: "first item", OnEnter: launcher.Hide()},
		{Title: "second item", OnEnter: launcher.Hide()},
	}}
	tm := newTestModel(t, q)

	sendRunes(tm, "tl")
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("second item"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyDown})
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("> second item"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}
