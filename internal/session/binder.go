package session

import (
	"fmt"
	"strings"

	"github.com/slipstream/slip/internal/state"
)

// Binder resolves the session a terminal should use and keeps its binding
// up to date.
type Binder struct {
	store *state.Store
	logf  func(format string, args ...interface{})
}

// NewBinder returns a Binder backed by store. logf may be nil.
func NewBinder(store *state.Store, logf func(format string, args ...interface{})) *Binder {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Binder{store: store, logf: logf}
}

// TerminalKey is the bindings map key for a terminal path.
func TerminalKey(tty string) string {
	return "tty:" + strings.TrimSpace(tty)
}

// Resolve returns the session id for tty, refreshing its binding. With no
// terminal it returns the per-process fallback id and records nothing.
func (b *Binder) Resolve(tty string) (string, error) {
	tty = strings.TrimSpace(tty)
	if tty == "" {
		return FallbackID(), nil
	}

	key := TerminalKey(tty)
	id := IDFromTerminal(tty)
	if prev, ok := b.store.Binding(key); ok && prev.SessionID != id {
		b.logf("terminal %s rebound from %s to %s", tty, prev.SessionID, id)
	}
	if err := b.store.TouchBinding(key, id); err != nil {
		return id, fmt.Errorf("recording session binding: %w", err)
	}
	return id, nil
}

// Current resolves the session for the terminal on stdin.
func (b *Binder) Current() (string, error) {
	return b.Resolve(CurrentTTY())
}
