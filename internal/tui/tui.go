// Package tui provides a standalone terminal picker over the same query
// dispatcher the launcher host uses. It exists for development and for
// environments without a launcher: type a keyword query, pick an item, and
// the item's action runs directly.
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"twlaunch/internal/dispatch"
	"twlaunch/internal/launcher"
)

// Querier answers keyword queries with rendered item lists.
type Querier interface {
	HandleQuery(ctx context.Context, keyword, argument string) launcher.Response
}

type itemsMsg struct {
	items []launcher.Item
}

type execDoneMsg struct {
	err error
}

// Model is the picker state.
type Model struct {
	querier Querier
	ctx     context.Context

	input  textinput.Model
	items  []launcher.Item
	cursor int
	status string

	width  int
	height int

	promptStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	dimStyle      lipgloss.Style
	statusStyle   lipgloss.Style
	helpStyle     lipgloss.Style
}

// New creates a picker model.
func New(q Querier) *Model {
	ti := textinput.New()
	ti.Placeholder = "tl +READY"
	ti.CharLimit = 256
	ti.Focus()

	return &Model{
		querier: q,
		ctx:     context.Background(),
		input:   ti,
		promptStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			return m.activate()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, tea.Batch(cmd, m.queryCmd())

	case itemsMsg:
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = 0
		}
		return m, nil

	case execDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = "done"
		}
		// Re-query so completed or started tasks show their new state.
		return m, m.queryCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// queryCmd asks the dispatcher for items matching the current input.
func (m *Model) queryCmd() tea.Cmd {
	value := m.input.Value()
	return func() tea.Msg {
		keyword, argument := dispatch.SplitQuery(value)
		if keyword == "" {
			return itemsMsg{}
		}
		resp := m.querier.HandleQuery(m.ctx, keyword, argument)
		return itemsMsg{items: resp.Items}
	}
}

// activate performs the selected item's action.
func (m *Model) activate() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.items) {
		return m, nil
	}
	item := m.items[m.cursor]

	switch item.OnEnter.Type {
	case launcher.ActionRun:
		c := exec.Command("sh", "-c", item.OnEnter.Command)
		return m, tea.ExecProcess(c, func(err error) tea.Msg {
			return execDoneMsg{err: err}
		})
	case launcher.ActionSetQuery:
		m.input.SetValue(item.OnEnter.Query)
		m.input.CursorEnd()
		m.cursor = 0
		return m, m.queryCmd()
	case launcher.ActionOpen:
		c := exec.Command("xdg-open", item.OnEnter.Target)
		return m, tea.ExecProcess(c, func(err error) tea.Msg {
			return execDoneMsg{err: err}
		})
	default:
		return m, tea.Quit
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.promptStyle.Render("twlaunch") + " " + m.input.View() + "\n\n")

	for i, item := range m.items {
		line := item.Title
		if item.Description != "" {
			line += "  " + m.dimStyle.Render(item.Description)
		}
		if i == m.cursor {
			b.WriteString(m.selectedStyle.Render("> ") + m.selectedStyle.Render(item.Title))
			if item.Description != "" {
				b.WriteString("  " + m.dimStyle.Render(item.Description))
			}
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if len(m.items) == 0 {
		b.WriteString(m.dimStyle.Render("  type a keyword query, e.g. 'tl' or 't buy milk'") + "\n")
	}

	if m.status != "" {
		b.WriteString("\n" + m.statusStyle.Render(m.status) + "\n")
	}

	b.WriteString("\n" + m.helpStyle.Render("↑/↓ select · enter run · esc quit"))
	return b.String()
}

// Run starts the picker and blocks until it exits.
func Run(q Querier) error {
	p := tea.NewProgram(New(q), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
