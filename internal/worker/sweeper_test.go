//go:build !windows

package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/slip/internal/config"
)

func TestProcessSweeper_KillsMatching(t *testing.T) {
	marker := fmt.Sprintf("slip-sweep-marker-%d", time.Now().UnixNano())
	cmd := exec.Command("sh", "-c", "sleep 30; echo "+marker)
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	s := &ProcessSweeper{Grace: 50 * time.Millisecond, Logf: t.Logf}

	var pids []int
	require.Eventually(t, func() bool {
		var err error
		pids, err = s.FindMatching(context.Background(), marker)
		return err == nil && len(pids) > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, pids, cmd.Process.Pid)

	n, err := s.KillMatching(context.Background(), marker)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("matched process survived the sweep")
	}
}

func TestProcessSweeper_NeverMatchesSelf(t *testing.T) {
	s := &ProcessSweeper{}
	self, err := os.Executable()
	require.NoError(t, err)

	pids, err := s.FindMatching(context.Background(), filepath.Base(self))
	require.NoError(t, err)
	assert.NotContains(t, pids, os.Getpid())
}

func TestProcessSweeper_EmptyPattern(t *testing.T) {
	s := &ProcessSweeper{}
	n, err := s.KillMatching(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommandLauncher_SpawnFailure(t *testing.T) {
	l := &CommandLauncher{
		Argv:    []string{"slip-no-such-binary-xyz", "--port", config.PortPlaceholder},
		LogFile: filepath.Join(t.TempDir(), "worker.log"),
	}
	_, err := l.Launch(context.Background(), 4096)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slip-no-such-binary-xyz")
}

func TestCommandLauncher_DetachedWithLog(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "cache", "worker.log")
	l := &CommandLauncher{
		Argv:      []string{"sh", "-c", "echo listening on " + config.PortPlaceholder + " via $SLIP_WORKER_PORT log=$OPENCODE_LOG"},
		LogFile:   logFile,
		ConfigDir: dir,
		Env:       map[string]string{"OPENCODE_LOG": "debug"},
	}

	pid, err := l.Launch(context.Background(), 4123)
	require.NoError(t, err)
	assert.Positive(t, pid)

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logFile)
		return err == nil && strings.Contains(string(data), "listening on 4123 via 4123 log=debug")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewLauncher(t *testing.T) {
	paths := config.NewPaths(t.TempDir())

	cfg := config.Default().Worker
	l, err := NewLauncher(paths, cfg)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultWorkerCommand, l.Argv)
	assert.Equal(t, paths.WorkerLogFile(), l.LogFile)
	assert.Empty(t, l.Env)

	cfg.Env = map[string]string{"OPENCODE_LOG": "debug"}
	l, err = NewLauncher(paths, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Env, l.Env)

	cfg.Builtin = true
	l, err = NewLauncher(paths, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"worker", "run", "--port", config.PortPlaceholder}, l.Argv[1:])

	cfg.Builtin = false
	cfg.Command = nil
	_, err = NewLauncher(paths, cfg)
	assert.Error(t, err)
}
