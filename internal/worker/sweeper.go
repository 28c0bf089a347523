package worker

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultGrace is how long swept processes get between SIGTERM and SIGKILL.
const DefaultGrace = 500 * time.Millisecond

// ProcessSweeper kills worker processes the record no longer points at,
// selected by a substring of their command line.
type ProcessSweeper struct {
	// Grace defaults to DefaultGrace.
	Grace time.Duration

	Logf func(format string, args ...interface{})
}

// FindMatching returns the PIDs of processes whose command line contains
// pattern, excluding the current process.
func (s *ProcessSweeper) FindMatching(ctx context.Context, pattern string) ([]int, error) {
	if pattern == "" {
		return nil, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	self := int32(os.Getpid())
	var pids []int
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, pattern) {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}

// KillMatching sends SIGTERM to every matching process, waits Grace, and
// SIGKILLs the survivors. It returns the number of processes signalled.
func (s *ProcessSweeper) KillMatching(ctx context.Context, pattern string) (int, error) {
	pids, err := s.FindMatching(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, nil
	}

	var signalled []int
	for _, pid := range pids {
		if err := sendTermSignal(pid); err != nil {
			s.logf("SIGTERM to PID %d failed: %v", pid, err)
			continue
		}
		signalled = append(signalled, pid)
	}

	grace := s.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	_ = sleep(ctx, grace)

	for _, pid := range signalled {
		if processAlive(pid) {
			s.logf("PID %d survived SIGTERM, sending SIGKILL", pid)
			_ = sendKillSignal(pid)
		}
	}
	return len(signalled), nil
}

func (s *ProcessSweeper) logf(format string, args ...interface{}) {
	if s.Logf != nil {
		s.Logf(format, args...)
	}
}
