// Package config provides configuration loading, state paths, and environment
// variable management for slip.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/slipstream/slip/internal/util"
)

// Defaults and limits for the worker and CLI.
const (
	DefaultPort           = 4096
	MinPort               = 1024
	MaxPort               = 65535
	DefaultIdleTimeout    = time.Hour
	MinIdleTimeout        = time.Minute
	DefaultStartupTimeout = 10 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	MinPollInterval       = 100 * time.Millisecond
	DefaultRestartDelay   = time.Second
	DefaultKillPattern    = "opencode serve"
	BuiltinKillPattern    = "slip worker run"
	DefaultAgent          = "slipstream"
	DefaultLearnerAgent   = "slipstream/learner"
)

// PortPlaceholder is replaced with the chosen port in the worker command.
const PortPlaceholder = "{port}"

// DefaultWorkerCommand launches an opencode server as the worker.
var DefaultWorkerCommand = []string{"opencode", "serve", "--port", PortPlaceholder}

// Duration is a time.Duration that reads and writes as a TOML string ("10s", "1h").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string. A bare integer is read as seconds,
// matching the original idle_timeout format.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.Atoi(s); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the user configuration stored in config.toml.
type Config struct {
	Worker WorkerConfig `toml:"worker"`
	Run    RunConfig    `toml:"run"`
	UI     UIConfig     `toml:"ui"`
}

// WorkerConfig controls how the background worker is found, started and stopped.
type WorkerConfig struct {
	// Port is the preferred port; the allocator scans upward from port+1 when it is taken.
	Port int `toml:"port"`

	// Builtin runs `slip worker run` instead of Command.
	Builtin bool `toml:"builtin"`

	// Command is the argv used to launch the worker. PortPlaceholder is substituted.
	Command []string `toml:"command"`

	// KillPattern selects processes for the forced stop sweep by command line.
	KillPattern string `toml:"kill_pattern"`

	// Env is added to the launched worker's environment.
	Env map[string]string `toml:"env"`

	IdleTimeout    Duration `toml:"idle_timeout"`
	StartupTimeout Duration `toml:"startup_timeout"`
	PollInterval   Duration `toml:"poll_interval"`

	// SpawnLockTimeout bounds the wait for another invocation's spawn. Zero
	// derives it from StartupTimeout and the probe budgets; negative disables
	// the lock.
	SpawnLockTimeout Duration `toml:"spawn_lock_timeout"`
	RestartDelay     Duration `toml:"restart_delay"`
}

// RunConfig holds defaults for prompt execution.
type RunConfig struct {
	Agent        string `toml:"agent"`
	Model        string `toml:"model"`
	LearnerAgent string `toml:"learner_agent"`
}

// UIConfig holds output preferences.
type UIConfig struct {
	Verbose bool `toml:"verbose"`
	Color   bool `toml:"color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Port:           DefaultPort,
			Command:        append([]string(nil), DefaultWorkerCommand...),
			KillPattern:    DefaultKillPattern,
			IdleTimeout:    Duration{DefaultIdleTimeout},
			StartupTimeout: Duration{DefaultStartupTimeout},
			PollInterval:   Duration{DefaultPollInterval},
			RestartDelay:   Duration{DefaultRestartDelay},
		},
		Run: RunConfig{
			Agent:        DefaultAgent,
			LearnerAgent: DefaultLearnerAgent,
		},
		UI: UIConfig{
			Color: true,
		},
	}
}

// Load reads config.toml at path on top of the defaults.
// A missing file yields the defaults and no error. A malformed file yields the
// defaults together with the parse error so callers can warn and continue.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's config file
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	parsed := Default()
	md, err := toml.Decode(string(data), parsed)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return parsed, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return parsed, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}

// Validate clamps out-of-range values back to usable ones and returns a
// warning for each adjustment.
func (c *Config) Validate() []string {
	var warnings []string
	w := &c.Worker

	if w.Port < MinPort || w.Port > MaxPort {
		warnings = append(warnings, fmt.Sprintf("worker.port %d out of range %d-%d, using %d", w.Port, MinPort, MaxPort, DefaultPort))
		w.Port = DefaultPort
	}
	if w.IdleTimeout.Duration < MinIdleTimeout {
		warnings = append(warnings, fmt.Sprintf("worker.idle_timeout %v below minimum, using %v", w.IdleTimeout.Duration, MinIdleTimeout))
		w.IdleTimeout.Duration = MinIdleTimeout
	}
	if w.StartupTimeout.Duration <= 0 {
		w.StartupTimeout.Duration = DefaultStartupTimeout
	}
	if w.PollInterval.Duration < MinPollInterval || w.PollInterval.Duration >= time.Second {
		warnings = append(warnings, fmt.Sprintf("worker.poll_interval %v must be sub-second and at least %v, using %v", w.PollInterval.Duration, MinPollInterval, DefaultPollInterval))
		w.PollInterval.Duration = DefaultPollInterval
	}
	if w.RestartDelay.Duration < 0 {
		w.RestartDelay.Duration = 0
	}
	if !w.Builtin && len(w.Command) == 0 {
		warnings = append(warnings, "worker.command is empty, using opencode serve")
		w.Command = append([]string(nil), DefaultWorkerCommand...)
	}
	if c.Run.Agent == "" {
		c.Run.Agent = DefaultAgent
	}
	if c.Run.LearnerAgent == "" {
		c.Run.LearnerAgent = DefaultLearnerAgent
	}
	return warnings
}

// EffectiveKillPattern returns the command-line pattern used by the forced stop sweep.
func (w WorkerConfig) EffectiveKillPattern() string {
	if w.Builtin {
		return BuiltinKillPattern
	}
	if w.KillPattern != "" {
		return w.KillPattern
	}
	return DefaultKillPattern
}
