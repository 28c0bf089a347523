package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/slipstream/slip/internal/config"
)

// CommandLauncher starts the worker from an argv template. Every
// config.PortPlaceholder in Argv is replaced with the chosen port.
//
// The child runs in its own session with stdin closed and stdout/stderr
// appended to LogFile. It is never waited on; its lifetime is independent of
// the invoking CLI.
type CommandLauncher struct {
	Argv      []string
	LogFile   string
	ConfigDir string
	Env       map[string]string
}

// NewLauncher picks the launcher for cfg: the built-in worker when
// cfg.Builtin is set, otherwise cfg.Command.
func NewLauncher(paths config.Paths, cfg config.WorkerConfig) (*CommandLauncher, error) {
	argv := cfg.Command
	if cfg.Builtin {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("finding executable: %w", err)
		}
		argv = BuiltinCommand(exe)
	}
	if len(argv) == 0 {
		return nil, errors.New("worker command is empty")
	}
	return &CommandLauncher{
		Argv:      argv,
		LogFile:   paths.WorkerLogFile(),
		ConfigDir: paths.ConfigDir,
		Env:       cfg.Env,
	}, nil
}

// BuiltinCommand is the argv that runs slip's own worker.
func BuiltinCommand(exe string) []string {
	return []string{exe, "worker", "run", "--port", config.PortPlaceholder}
}

// Launch starts the worker on port and returns its PID.
func (l *CommandLauncher) Launch(_ context.Context, port int) (int, error) {
	argv := config.ExpandCommand(l.Argv, port)
	if len(argv) == 0 {
		return 0, errors.New("worker command is empty")
	}

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return 0, fmt.Errorf("finding %s: %w", argv[0], err)
	}

	var logFile *os.File
	if l.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(l.LogFile), 0755); err != nil {
			return 0, fmt.Errorf("creating log directory: %w", err)
		}
		logFile, err = os.OpenFile(l.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) //nolint:gosec // G304: path is under the cache dir
		if err != nil {
			return 0, fmt.Errorf("opening worker log: %w", err)
		}
		defer logFile.Close()
	}

	// Not CommandContext: the worker must outlive this invocation.
	cmd := exec.Command(bin, argv[1:]...) //nolint:gosec // G204: argv comes from the user's config
	cmd.Stdin = nil
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}
	cmd.Env = config.EnvForExecCommand(config.WorkerEnv(config.WorkerEnvConfig{
		Port:      port,
		ConfigDir: l.ConfigDir,
		Extra:     l.Env,
	}))
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
