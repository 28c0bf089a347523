package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the configuration directory.
const ConfigDirEnv = "SLIP_CONFIG_DIR"

// Paths locates everything slip persists. It is built once per invocation and
// passed to the stores and managers that need it.
type Paths struct {
	ConfigDir string
	CacheDir  string
}

// DefaultPaths returns $SLIP_CONFIG_DIR, or ~/.config/opencode/slipstream, with
// its cache subdirectory.
func DefaultPaths() (Paths, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return NewPaths(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("finding home directory: %w", err)
	}
	return NewPaths(filepath.Join(home, ".config", "opencode", "slipstream")), nil
}

// NewPaths roots all paths at configDir.
func NewPaths(configDir string) Paths {
	return Paths{
		ConfigDir: configDir,
		CacheDir:  filepath.Join(configDir, "cache"),
	}
}

// Ensure creates the config and cache directories.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return nil
}

// ConfigFile is the user configuration.
func (p Paths) ConfigFile() string { return filepath.Join(p.ConfigDir, "config.toml") }

// StateFile holds the worker record.
func (p Paths) StateFile() string { return filepath.Join(p.CacheDir, "server-state.json") }

// SessionsFile holds terminal session bindings.
func (p Paths) SessionsFile() string { return filepath.Join(p.CacheDir, "sessions.json") }

// SessionsLockFile serializes read-modify-write of SessionsFile.
func (p Paths) SessionsLockFile() string { return filepath.Join(p.CacheDir, "sessions.lock") }

// SpawnLockFile serializes the check-then-spawn section of worker startup.
func (p Paths) SpawnLockFile() string { return filepath.Join(p.CacheDir, "spawn.lock") }

// WorkerLogFile receives the worker's stdout and stderr.
func (p Paths) WorkerLogFile() string { return filepath.Join(p.CacheDir, "worker.log") }
