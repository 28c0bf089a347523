package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// DefaultListLimit matches `opencode session list -n`.
const DefaultListLimit = 20

// Info describes one session known to the worker.
type Info struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// DisplayName renders a session as a fixed-width terminal name and its title.
func DisplayName(s Info) string {
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("%-12s %s", ShortName(s.ID), title)
}

// Lister queries the worker CLI for sessions.
type Lister struct {
	// Binary is the worker CLI. Defaults to "opencode".
	Binary string

	// Output runs a command and returns its stdout. Defaults to exec.
	Output func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// List returns up to limit slip sessions, most recent first as reported by the
// worker. A failing command or unparseable output yields an empty list.
func (l *Lister) List(ctx context.Context, limit int) []Info {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	bin := l.Binary
	if bin == "" {
		bin = "opencode"
	}
	output := l.Output
	if output == nil {
		output = execOutput
	}

	out, err := output(ctx, bin, "session", "list", "-n", strconv.Itoa(limit), "--format", "json")
	if err != nil {
		return nil
	}
	var all []Info
	if err := json.Unmarshal(out, &all); err != nil {
		return nil
	}

	sessions := make([]Info, 0, len(all))
	for _, s := range all {
		if IsSlipID(s.ID) {
			sessions = append(sessions, s)
		}
	}
	return sessions
}
