package cmd

import (
	"github.com/slipstream/slip/internal/exitcode"
	"github.com/slipstream/slip/internal/ports"
	"github.com/slipstream/slip/internal/tui/picker"
	"github.com/slipstream/slip/internal/worker"
)

func init() {
	exitcode.Register(ports.ErrNoPortAvailable, exitcode.ErrNoPort)
	exitcode.Register(worker.ErrStartupTimeout, exitcode.ErrTimeout)
	exitcode.Register(worker.ErrSpawnFailed, exitcode.ErrSpawnFailed)
	exitcode.Register(picker.ErrCancelled, exitcode.ErrGeneral)
}
