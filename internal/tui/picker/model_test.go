package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/slipstream/slip/internal/session"
)

var testSessions = []session.Info{
	{ID: "slip-_dev_ttys001", Title: "refactor parser"},
	{ID: "slip-_dev_ttys002"},
	{ID: "slip-_dev_pts_3", Title: "deploy"},
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestPicker_ChoosesHighlighted(t *testing.T) {
	m := press(New("Select a session:", testSessions), "down", "j", "enter")

	got, ok := m.Chosen()
	if !ok {
		t.Fatal("expected a selection")
	}
	if got.ID != "slip-_dev_pts_3" {
		t.Errorf("chosen = %q, want slip-_dev_pts_3", got.ID)
	}
}

func TestPicker_CursorClamped(t *testing.T) {
	m := press(New("", testSessions), "up", "k", "G", "down", "down")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor)
	}
	m = press(m, "g")
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestPicker_Cancel(t *testing.T) {
	for _, k := range []string{"esc", "q"} {
		m := press(New("", testSessions), "down", k)
		if _, ok := m.Chosen(); ok {
			t.Errorf("%s: cancel must not choose", k)
		}
		if m.View() != "" {
			t.Errorf("%s: view should be cleared after quitting", k)
		}
	}
}

func TestPicker_EmptyList(t *testing.T) {
	m := press(New("", nil), "down", "enter")
	if _, ok := m.Chosen(); ok {
		t.Error("empty list cannot produce a selection")
	}
}

func TestPicker_View(t *testing.T) {
	m := New("Select a session:", testSessions)
	view := m.View()

	for _, want := range []string{"Select a session:", "ttys001", "refactor parser", "(untitled)", "pts_3"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestPicker_ViewScrollsWithCursor(t *testing.T) {
	var many []session.Info
	for i := 0; i < 30; i++ {
		many = append(many, session.Info{ID: "slip-_dev_pts_" + strings.Repeat("x", i%3+1) + string(rune('a'+i%26))})
	}
	m := New("", many)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = next.(Model)

	for i := 0; i < 29; i++ {
		m = press(m, "down")
	}
	start, end := m.visibleRange()
	if m.cursor < start || m.cursor >= end {
		t.Errorf("cursor %d outside visible range [%d,%d)", m.cursor, start, end)
	}
	if end-start != 4 {
		t.Errorf("visible rows = %d, want 4", end-start)
	}
}

func TestPicker_ViewFitsWidth(t *testing.T) {
	long := session.Info{ID: "slip-_dev_pts_9", Title: strings.Repeat("very long title ", 10)}
	m := New("", []session.Info{long})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "…") {
		t.Errorf("long row not truncated:\n%s", view)
	}
	for _, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "pts_9") && lipgloss.Width(line) > 40 {
			t.Errorf("row is %d cells wide, want <= 40: %q", lipgloss.Width(line), line)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate = %q, want abcd…", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Errorf("zero width must not truncate, got %q", got)
	}
}
