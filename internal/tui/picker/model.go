// Package picker is an interactive list for choosing a slip session.
package picker

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/slipstream/slip/internal/session"
	"github.com/slipstream/slip/internal/ui"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 80

// ErrCancelled is returned by Run when the user leaves without choosing.
var ErrCancelled = errors.New("selection cancelled")

var (
	colorSelected = lipgloss.Color("39")
	colorMuted    = lipgloss.Color("242")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)

	selectedItemStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("236")).
				Foreground(lipgloss.Color("15")).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle()

	cursorStyle = lipgloss.NewStyle().Foreground(colorSelected)

	helpStyle = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)
)

// Model is the bubbletea model for the session picker.
type Model struct {
	title    string
	sessions []session.Info
	cursor   int
	chosen   *session.Info
	quit     bool

	keys KeyMap
	help help.Model

	width  int
	height int
}

// New returns a picker over sessions, sized to the current terminal width.
func New(title string, sessions []session.Info) Model {
	width := ui.TerminalWidth(defaultWidth)
	h := help.New()
	h.Width = width
	return Model{
		title:    title,
		sessions: sessions,
		keys:     DefaultKeyMap(),
		help:     h,
		width:    width,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.quit = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.sessions)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
		case key.Matches(msg, m.keys.Bottom):
			if len(m.sessions) > 0 {
				m.cursor = len(m.sessions) - 1
			}
		case key.Matches(msg, m.keys.Confirm):
			if len(m.sessions) > 0 {
				chosen := m.sessions[m.cursor]
				m.chosen = &chosen
			}
			m.quit = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// visibleRange returns the slice of sessions that fits the window.
func (m Model) visibleRange() (int, int) {
	rows := len(m.sessions)
	if m.height > 6 && rows > m.height-6 {
		rows = m.height - 6
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	return start, start + rows
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quit {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	start, end := m.visibleRange()
	for i := start; i < end && i < len(m.sessions); i++ {
		line := truncate(session.DisplayName(m.sessions[i]), m.width-2)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("› "))
			b.WriteString(selectedItemStyle.Render(line))
		} else {
			b.WriteString("  ")
			b.WriteString(normalItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// truncate shortens s to at most width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// Chosen returns the selected session, if any.
func (m Model) Chosen() (session.Info, bool) {
	if m.chosen == nil {
		return session.Info{}, false
	}
	return *m.chosen, true
}

// Run shows the picker and returns the chosen session id.
func Run(title string, sessions []session.Info, opts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(New(title, sessions), opts...).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(Model)
	if !ok {
		return "", ErrCancelled
	}
	chosen, ok := m.Chosen()
	if !ok {
		return "", ErrCancelled
	}
	return chosen.ID, nil
}
