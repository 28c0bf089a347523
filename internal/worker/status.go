package worker

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/slipstream/slip/internal/health"
	"github.com/slipstream/slip/internal/state"
)

// ProcessInfo describes a running worker process.
type ProcessInfo struct {
	PID       int
	Cmdline   string
	StartedAt time.Time
	RSS       uint64
}

// Status is a point-in-time view of the worker.
type Status struct {
	// Record is the persisted record, nil if none.
	Record *state.Record

	// Port that was probed: the recorded one, or the preferred port when
	// there is no record.
	Port int

	Health health.Result

	// Process is set when the record carries a live PID.
	Process *ProcessInfo
}

// Running reports whether a healthy worker answered.
func (s *Status) Running() bool {
	return s.Health.Healthy
}

// Recorded reports whether the answering worker is the recorded one.
func (s *Status) Recorded() bool {
	return s.Record != nil
}

// State summarizes a Status in a few words.
type State string

const (
	StateRunning       State = "running"
	StateUntracked     State = "untracked"
	StateNotResponding State = "not responding"
	StateStopped       State = "stopped"
)

// State classifies the status by health and whether a record exists.
func (s *Status) State() State {
	switch {
	case s.Running() && s.Recorded():
		return StateRunning
	case s.Running():
		return StateUntracked
	case s.Recorded():
		return StateNotResponding
	default:
		return StateStopped
	}
}

// Status probes the recorded worker, or preferredPort when nothing is recorded.
// It never modifies the record.
func (m *Manager) Status(ctx context.Context, preferredPort int) (*Status, error) {
	st := &Status{Port: preferredPort}

	if rec := m.Store.LoadRecord(); rec != nil {
		st.Record = rec
		st.Port = rec.Port
	}
	if m.portOpen(st.Port) {
		st.Health = m.Prober.Check(ctx, st.Port, m.Timing.CheckTimeout)
	}
	if st.Record != nil && st.Record.PID > 0 {
		if info, err := InspectProcess(ctx, st.Record.PID); err == nil {
			st.Process = info
		} else {
			m.logf("inspecting PID %d: %v", st.Record.PID, err)
		}
	}
	return st, nil
}

// InspectProcess reads command line, start time and resident memory for pid.
func InspectProcess(ctx context.Context, pid int) (*ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	info := &ProcessInfo{PID: pid}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		info.Cmdline = cmdline
	}
	if ms, err := p.CreateTimeWithContext(ctx); err == nil {
		info.StartedAt = time.UnixMilli(ms)
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSS = mem.RSS
	}
	return info, nil
}
