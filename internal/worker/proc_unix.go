//go:build !windows

package worker

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSysProcAttr starts the worker in a new session so it is not signalled
// when the invoking terminal closes.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

// processAlive reports whether pid exists. EPERM means it exists but belongs
// to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// sendTermSignal asks pid to exit.
func sendTermSignal(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// sendKillSignal forces pid to exit.
func sendKillSignal(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
