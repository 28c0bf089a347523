// Package worker keeps one background worker process available on localhost.
//
// Every CLI invocation builds a Manager and calls Ensure. There is no resident
// supervisor: the persisted record is only a hint, and health probes decide
// whether a worker is usable. Startup runs through these states:
//
//	record present  -> probe -> healthy: attach
//	                         -> unhealthy: dispose, clear record, continue
//	no record       -> preferred port answers and is healthy: adopt
//	                -> preferred port answers but is not ours: scan from preferred+1
//	                -> preferred port free: spawn there
//	spawned         -> poll health until ready or the startup budget runs out
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/health"
	"github.com/slipstream/slip/internal/lock"
	"github.com/slipstream/slip/internal/ports"
	"github.com/slipstream/slip/internal/state"
)

var (
	// ErrStartupTimeout means a spawned worker never became healthy.
	ErrStartupTimeout = errors.New("worker did not become healthy")

	// ErrSpawnFailed means the OS refused to launch the worker.
	ErrSpawnFailed = errors.New("failed to launch worker")
)

// Action describes how Ensure obtained its worker.
type Action string

const (
	ActionAttached Action = "attached"
	ActionAdopted  Action = "adopted"
	ActionSpawned  Action = "spawned"
)

// EnsureResult is the worker Ensure settled on.
type EnsureResult struct {
	Port    int
	Version string
	PID     int
	Action  Action
}

// StopMethod records which path Stop took.
type StopMethod string

const (
	StopGraceful StopMethod = "graceful"
	StopForced   StopMethod = "forced"
	StopNone     StopMethod = "none"
)

// StopResult reports what Stop did. Port is zero when there was no record.
type StopResult struct {
	Port   int
	Method StopMethod
	Killed int
}

// Prober checks and disposes workers over HTTP.
type Prober interface {
	Check(ctx context.Context, port int, timeout time.Duration) health.Result
	Dispose(ctx context.Context, port int) bool
}

// Launcher starts a detached worker listening on port and returns its PID.
type Launcher interface {
	Launch(ctx context.Context, port int) (int, error)
}

// Killer terminates every process whose command line contains pattern and
// returns how many it signalled.
type Killer interface {
	KillMatching(ctx context.Context, pattern string) (int, error)
}

// Timing bounds every wait in the manager.
type Timing struct {
	// StartupTimeout is the wall-clock budget for a spawned worker to become healthy.
	StartupTimeout time.Duration
	// PollInterval is the delay between readiness probes.
	PollInterval time.Duration
	// ProbeTimeout bounds each readiness probe.
	ProbeTimeout time.Duration
	// CheckTimeout bounds the probe of an existing worker.
	CheckTimeout time.Duration
	// SpawnLockTimeout bounds the wait for the spawn lock. Zero derives it
	// with SpawnLockWait; negative disables locking.
	SpawnLockTimeout time.Duration
	// RestartDelay is the pause between disposing and starting on restart.
	RestartDelay time.Duration
}

// DefaultTiming returns the stock timing.
func DefaultTiming() Timing {
	return Timing{
		StartupTimeout: config.DefaultStartupTimeout,
		PollInterval:   config.DefaultPollInterval,
		ProbeTimeout:   time.Second,
		CheckTimeout:   health.DefaultTimeout,
		RestartDelay:   config.DefaultRestartDelay,
	}
}

// spawnLockSlack covers the port scan and the launch itself.
const spawnLockSlack = 2 * time.Second

// SpawnLockWait is how long Ensure waits for the spawn lock. When
// SpawnLockTimeout is zero it is the longest a holder can spend inside the
// lock: two checks of an existing worker, one dispose, the startup budget and
// a final readiness probe.
func (t Timing) SpawnLockWait() time.Duration {
	if t.SpawnLockTimeout != 0 {
		return t.SpawnLockTimeout
	}
	return 2*t.CheckTimeout + health.DefaultDisposeTimeout + t.StartupTimeout + t.ProbeTimeout + spawnLockSlack
}

// Manager finds, starts and stops the worker.
type Manager struct {
	Store    *state.Store
	Prober   Prober
	Launcher Launcher
	Killer   Killer

	// PortOpen reports whether something answers on a port. Defaults to ports.IsPortOpen.
	PortOpen func(port int) bool

	// Allocator picks a port when the preferred one is taken by something else.
	Allocator *ports.Allocator

	// KillPattern selects processes for the forced stop sweep.
	KillPattern string

	// SpawnLockPath serializes check-then-spawn across invocations. Empty disables it.
	SpawnLockPath string

	Timing Timing

	Logf func(format string, args ...interface{})
}

// NewManager wires a Manager from configuration. logf may be nil.
func NewManager(paths config.Paths, cfg config.WorkerConfig, logf func(format string, args ...interface{})) (*Manager, error) {
	launcher, err := NewLauncher(paths, cfg)
	if err != nil {
		return nil, err
	}
	timing := DefaultTiming()
	timing.StartupTimeout = cfg.StartupTimeout.Duration
	timing.PollInterval = cfg.PollInterval.Duration
	timing.SpawnLockTimeout = cfg.SpawnLockTimeout.Duration
	timing.RestartDelay = cfg.RestartDelay.Duration

	m := &Manager{
		Store:         state.NewStore(paths),
		Prober:        health.NewClient(),
		Launcher:      launcher,
		Killer:        &ProcessSweeper{Logf: logf},
		PortOpen:      ports.IsPortOpen,
		Allocator:     &ports.Allocator{},
		KillPattern:   cfg.EffectiveKillPattern(),
		SpawnLockPath: paths.SpawnLockFile(),
		Timing:        timing,
		Logf:          logf,
	}
	return m, nil
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.Logf != nil {
		m.Logf(format, args...)
	}
}

func (m *Manager) portOpen(port int) bool {
	if m.PortOpen != nil {
		return m.PortOpen(port)
	}
	return ports.IsPortOpen(port)
}

func (m *Manager) allocator() *ports.Allocator {
	if m.Allocator != nil {
		return m.Allocator
	}
	return &ports.Allocator{}
}

// Ensure returns a healthy worker, attaching to the recorded one, adopting an
// unrecorded one on preferredPort, or spawning a new one.
func (m *Manager) Ensure(ctx context.Context, preferredPort int) (*EnsureResult, error) {
	if res := m.attachRecorded(ctx); res != nil {
		return res, nil
	}

	unlock := m.lockSpawn(ctx)
	defer unlock()

	// Another invocation may have finished spawning while we waited.
	if res := m.attachRecorded(ctx); res != nil {
		return res, nil
	}

	port := preferredPort
	if m.portOpen(preferredPort) {
		if r := m.Prober.Check(ctx, preferredPort, m.Timing.CheckTimeout); r.Healthy {
			m.logf("adopting healthy worker on port %d (v%s)", preferredPort, r.Version)
			m.saveRecord(state.Record{Port: preferredPort})
			return &EnsureResult{Port: preferredPort, Version: r.Version, Action: ActionAdopted}, nil
		}
		m.logf("port %d is in use by another service", preferredPort)
		free, err := m.allocator().Find(preferredPort + 1)
		if err != nil {
			return nil, err
		}
		port = free
	}

	return m.spawn(ctx, port)
}

// attachRecorded probes the recorded worker. A healthy one is returned; an
// unhealthy one is disposed and its record cleared.
func (m *Manager) attachRecorded(ctx context.Context) *EnsureResult {
	rec := m.Store.LoadRecord()
	if rec == nil {
		return nil
	}
	if r := m.Prober.Check(ctx, rec.Port, m.Timing.CheckTimeout); r.Healthy {
		return &EnsureResult{Port: rec.Port, Version: r.Version, PID: rec.PID, Action: ActionAttached}
	}

	m.logf("recorded worker on port %d is not healthy, clearing record", rec.Port)
	m.Prober.Dispose(ctx, rec.Port)
	if err := m.Store.ClearRecord(); err != nil {
		m.logf("%v", err)
	}
	return nil
}

// lockSpawn takes the spawn lock with a bounded wait. On timeout or error it
// logs and proceeds unlocked.
func (m *Manager) lockSpawn(ctx context.Context) func() {
	noop := func() {}
	wait := m.Timing.SpawnLockWait()
	if m.SpawnLockPath == "" || wait < 0 {
		return noop
	}
	lctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	unlock, ok, err := lock.FlockAcquireContext(lctx, m.SpawnLockPath)
	if err != nil {
		m.logf("spawn lock unavailable: %v", err)
		return noop
	}
	if !ok {
		m.logf("spawn lock still held after %v, continuing without it", wait)
		return noop
	}
	return unlock
}

func (m *Manager) spawn(ctx context.Context, port int) (*EnsureResult, error) {
	m.logf("starting worker on port %d", port)
	pid, err := m.Launcher.Launch(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("%w on port %d: %v", ErrSpawnFailed, port, err)
	}

	r, err := m.waitReady(ctx, port)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m.saveRecord(state.Record{Port: port, PID: pid, StartedAt: &now})
	m.logf("worker ready on port %d (PID %d, v%s)", port, pid, r.Version)
	return &EnsureResult{Port: port, Version: r.Version, PID: pid, Action: ActionSpawned}, nil
}

// waitReady polls the worker until it is healthy or StartupTimeout passes.
// No probe outlives the deadline.
func (m *Manager) waitReady(ctx context.Context, port int) (health.Result, error) {
	budget := m.Timing.StartupTimeout
	deadline := time.Now().Add(budget)

	for {
		timeout := m.Timing.ProbeTimeout
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
		if timeout > 0 {
			if r := m.Prober.Check(ctx, port, timeout); r.Healthy {
				return r, nil
			}
		}
		if time.Now().Add(m.Timing.PollInterval).After(deadline) {
			return health.Result{}, fmt.Errorf("%w on port %d within %v", ErrStartupTimeout, port, budget)
		}
		if err := sleep(ctx, m.Timing.PollInterval); err != nil {
			return health.Result{}, err
		}
	}
}

func (m *Manager) saveRecord(rec state.Record) {
	if err := m.Store.SaveRecord(rec); err != nil {
		m.logf("%v", err)
	}
}

// Stop shuts the worker down. It asks the recorded worker to dispose itself;
// if that fails, or there is no record, it sweeps matching processes. The
// record is cleared in every case and sweep failures are only logged.
func (m *Manager) Stop(ctx context.Context) (*StopResult, error) {
	res := &StopResult{Method: StopNone}

	rec := m.Store.LoadRecord()
	if rec != nil {
		res.Port = rec.Port
		if m.Prober.Dispose(ctx, rec.Port) {
			res.Method = StopGraceful
		}
	}

	if res.Method != StopGraceful {
		killed, err := m.sweep(ctx)
		if err != nil {
			m.logf("process sweep failed: %v", err)
		}
		res.Killed = killed
		if rec != nil || killed > 0 {
			res.Method = StopForced
		}
	}

	if err := m.Store.ClearRecord(); err != nil {
		m.logf("%v", err)
	}
	return res, nil
}

func (m *Manager) sweep(ctx context.Context) (int, error) {
	if m.Killer == nil || m.KillPattern == "" {
		return 0, nil
	}
	return m.Killer.KillMatching(ctx, m.KillPattern)
}

// Restart disposes the current worker, waits RestartDelay, and ensures a fresh
// one on port.
func (m *Manager) Restart(ctx context.Context, port int) (*EnsureResult, error) {
	if rec := m.Store.LoadRecord(); rec != nil {
		if !m.Prober.Dispose(ctx, rec.Port) {
			m.logf("worker on port %d did not accept dispose", rec.Port)
		}
		if err := m.Store.ClearRecord(); err != nil {
			m.logf("%v", err)
		}
		if err := sleep(ctx, m.Timing.RestartDelay); err != nil {
			return nil, err
		}
		m.waitClosed(ctx, rec.Port)
	}
	return m.Ensure(ctx, port)
}

// waitClosed polls until a disposed worker releases port, for at most StartupTimeout.
func (m *Manager) waitClosed(ctx context.Context, port int) {
	deadline := time.Now().Add(m.Timing.StartupTimeout)
	for m.portOpen(port) {
		if time.Now().After(deadline) {
			m.logf("port %d still open after restart delay", port)
			return
		}
		if sleep(ctx, m.Timing.PollInterval) != nil {
			return
		}
	}
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
