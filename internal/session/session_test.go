package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/lock"
	"github.com/slipstream/slip/internal/state"
)

func TestIDFromTerminal(t *testing.T) {
	tests := []struct {
		tty  string
		want string
	}{
		{"/dev/ttys001", "slip-_dev_ttys001"},
		{"/dev/pts/1", "slip-_dev_pts_1"},
		{"  /dev/pts/7\n", "slip-_dev_pts_7"},
		{`\\.\pipe\con`, "slip-__._pipe_con"},
	}
	for _, tt := range tests {
		if got := IDFromTerminal(tt.tty); got != tt.want {
			t.Errorf("IDFromTerminal(%q) = %q, want %q", tt.tty, got, tt.want)
		}
	}
}

func TestIDFromTerminal_Fallback(t *testing.T) {
	want := fmt.Sprintf("slip-pid-%d", os.Getpid())
	for _, tty := range []string{"", "   "} {
		if got := IDFromTerminal(tty); got != want {
			t.Errorf("IDFromTerminal(%q) = %q, want %q", tty, got, want)
		}
	}
	if !regexp.MustCompile(`^slip-pid-\d+$`).MatchString(FallbackID()) {
		t.Errorf("FallbackID() = %q has wrong shape", FallbackID())
	}
}

func TestNormalizeID(t *testing.T) {
	tests := map[string]string{
		"ttys001":           "slip-_dev_ttys001",
		"slip-_dev_ttys001": "slip-_dev_ttys001",
		"slip-pid-42":       "slip-pid-42",
	}
	for in, want := range tests {
		if got := NormalizeID(in); got != want {
			t.Errorf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{ID: "slip-_dev_ttys001", Title: "fix tests"}, "ttys001      fix tests"},
		{Info{ID: "slip-_dev_pts_3"}, "pts_3        (untitled)"},
		{Info{ID: "slip-pid-99", Title: "x"}, "pid-99       x"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.info); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestParseTTYOutput(t *testing.T) {
	if got := parseTTYOutput("/dev/pts/2\n"); got != "/dev/pts/2" {
		t.Errorf("got %q", got)
	}
	if got := parseTTYOutput("not a tty\n"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestBinder_Resolve(t *testing.T) {
	store := state.NewStore(config.NewPaths(t.TempDir()))
	b := NewBinder(store, nil)

	id, err := b.Resolve("/dev/pts/5")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "slip-_dev_pts_5" {
		t.Errorf("id = %q", id)
	}

	first, ok := store.Binding(TerminalKey("/dev/pts/5"))
	if !ok {
		t.Fatal("binding not recorded")
	}

	again, err := b.Resolve("/dev/pts/5")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again != id {
		t.Errorf("second Resolve = %q, want %q", again, id)
	}
	second, _ := store.Binding(TerminalKey("/dev/pts/5"))
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updatedAt went backwards: %v then %v", first.UpdatedAt, second.UpdatedAt)
	}
	if n := len(store.LoadBindings()); n != 1 {
		t.Errorf("bindings = %d, want 1", n)
	}
}

func TestBinder_ResolveReturnsWhileBindingsLocked(t *testing.T) {
	paths := config.NewPaths(t.TempDir())
	store := state.NewStore(paths)
	b := NewBinder(store, nil)

	release, ok, err := lock.FlockAcquireContext(context.Background(), paths.SessionsLockFile())
	if err != nil || !ok {
		t.Fatalf("holding sessions lock: ok=%v err=%v", ok, err)
	}
	defer release()

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := b.Resolve("/dev/pts/1")
		done <- result{id, err}
	}()

	select {
	case r := <-done:
		if r.id != "slip-_dev_pts_1" {
			t.Errorf("id = %q, want the derived id even without a binding", r.id)
		}
		if !errors.Is(r.err, state.ErrBindingsLocked) {
			t.Errorf("err = %v, want ErrBindingsLocked", r.err)
		}
	case <-time.After(state.BindingLockTimeout + 2*time.Second):
		t.Fatal("Resolve did not return while the sessions lock was held")
	}
}

func TestBinder_NoTerminalIsNotPersisted(t *testing.T) {
	store := state.NewStore(config.NewPaths(t.TempDir()))
	b := NewBinder(store, nil)

	id, err := b.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != FallbackID() {
		t.Errorf("id = %q, want %q", id, FallbackID())
	}
	if n := len(store.LoadBindings()); n != 0 {
		t.Errorf("fallback id was persisted (%d bindings)", n)
	}
}

func TestLister_List(t *testing.T) {
	var gotArgs []string
	l := &Lister{
		Output: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte(`[
				{"id":"slip-_dev_ttys001","title":"one"},
				{"id":"ses_abc","title":"not ours"},
				{"id":"slip-_dev_pts_2"}
			]`), nil
		},
	}

	got := l.List(context.Background(), 5)
	if len(got) != 2 || got[0].ID != "slip-_dev_ttys001" || got[1].ID != "slip-_dev_pts_2" {
		t.Errorf("List() = %+v", got)
	}

	want := []string{"opencode", "session", "list", "-n", "5", "--format", "json"}
	if fmt.Sprint(gotArgs) != fmt.Sprint(want) {
		t.Errorf("args = %v, want %v", gotArgs, want)
	}
}

func TestLister_ListFailures(t *testing.T) {
	failing := &Lister{Output: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}}
	if got := failing.List(context.Background(), 0); len(got) != 0 {
		t.Errorf("failing command: got %+v", got)
	}

	garbage := &Lister{Output: func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Error: no server"), nil
	}}
	if got := garbage.List(context.Background(), 0); len(got) != 0 {
		t.Errorf("garbage output: got %+v", got)
	}
}
