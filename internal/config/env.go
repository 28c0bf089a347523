package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// Environment variables read or set by slip.
const (
	EnvPort       = "SLIP_PORT"
	EnvVerbose    = "SLIP_VERBOSE"
	EnvWorkerPort = "SLIP_WORKER_PORT"
)

// WorkerEnvConfig specifies the environment handed to a launched worker.
type WorkerEnvConfig struct {
	// Port the worker must bind.
	Port int

	// ConfigDir is exported so a built-in worker reads the same config.toml.
	ConfigDir string

	// Extra variables from worker.env, applied last.
	Extra map[string]string
}

// WorkerEnv returns the environment variables for a worker process.
func WorkerEnv(cfg WorkerEnvConfig) map[string]string {
	env := map[string]string{
		EnvWorkerPort: strconv.Itoa(cfg.Port),
	}
	// Only set the config dir if provided; an empty value would mask the default.
	if cfg.ConfigDir != "" {
		env[ConfigDirEnv] = cfg.ConfigDir
	}
	return MergeEnv(env, cfg.Extra)
}

// ApplyEnv overlays SLIP_PORT and SLIP_VERBOSE onto cfg. Invalid values are ignored.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Port = port
		}
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UI.Verbose = b
		}
	}
}

// WorkerPortFromEnv returns the port a launcher assigned through
// SLIP_WORKER_PORT, if it is set and in range.
func WorkerPortFromEnv() (int, bool) {
	port, err := strconv.Atoi(os.Getenv(EnvWorkerPort))
	if err != nil || port < MinPort || port > MaxPort {
		return 0, false
	}
	return port, true
}

// MergeEnv merges multiple environment maps, with later maps taking precedence.
func MergeEnv(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// EnvForExecCommand returns os.Environ() with the given env vars appended.
// Keys are sorted so the resulting slice is deterministic.
func EnvForExecCommand(env map[string]string) []string {
	return append(os.Environ(), EnvToSlice(env)...)
}

// EnvToSlice converts an env map to a sorted slice of "K=V" strings.
func EnvToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(env))
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}

// ExpandCommand substitutes PortPlaceholder in every argument of argv.
func ExpandCommand(argv []string, port int) []string {
	p := strconv.Itoa(port)
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = strings.ReplaceAll(arg, PortPlaceholder, p)
	}
	return out
}
