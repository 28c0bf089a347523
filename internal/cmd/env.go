package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/exitcode"
	"github.com/slipstream/slip/internal/session"
	"github.com/slipstream/slip/internal/state"
	"github.com/slipstream/slip/internal/ui"
	"github.com/slipstream/slip/internal/worker"
)

var verbose bool

// cliEnv is what every command needs: where state lives, the effective
// configuration, and the diagnostic logger.
type cliEnv struct {
	paths config.Paths
	cfg   *config.Config
	logf  func(format string, args ...interface{})
}

// cliEnvironment is set by setupEnv before any RunE executes.
var cliEnvironment *cliEnv

// workerManager is the part of worker.Manager the commands drive.
type workerManager interface {
	Ensure(ctx context.Context, preferredPort int) (*worker.EnsureResult, error)
	Stop(ctx context.Context) (*worker.StopResult, error)
	Restart(ctx context.Context, port int) (*worker.EnsureResult, error)
	Status(ctx context.Context, preferredPort int) (*worker.Status, error)
}

// Seams replaced in tests.
var (
	newManager = func(e *cliEnv) (workerManager, error) {
		return worker.NewManager(e.paths, e.cfg.Worker, e.logf)
	}

	// runForeground runs a command with the terminal's stdio and waits for it.
	runForeground = func(ctx context.Context, argv []string) error {
		c := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // G204: argv is built from flags and config
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	}

	listSessions = func(ctx context.Context, limit int) []session.Info {
		return (&session.Lister{}).List(ctx, limit)
	}
)

// loadEnv resolves paths, loads config.toml, applies environment overrides and
// clamps out-of-range values. Config problems are warnings, never fatal.
func loadEnv(cmd *cobra.Command) (*cliEnv, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}
	if err := paths.Ensure(); err != nil {
		return nil, err
	}

	stderr := cmd.ErrOrStderr()
	cfg, err := config.Load(paths.ConfigFile())
	if err != nil {
		printWarning(stderr, "%v (using defaults)", err)
	}
	config.ApplyEnv(cfg)
	for _, w := range cfg.Validate() {
		printWarning(stderr, "%s", w)
	}

	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed {
		cfg.UI.Verbose = verbose
	}
	if !cfg.UI.Color {
		ui.DisableColor()
	}

	e := &cliEnv{paths: paths, cfg: cfg, logf: func(string, ...interface{}) {}}
	if cfg.UI.Verbose {
		e.logf = func(format string, args ...interface{}) {
			fmt.Fprintf(stderr, "%s\n", ui.RenderMuted("  "+fmt.Sprintf(format, args...)))
		}
	}
	return e, nil
}

// env returns the loaded environment, loading it if a test or an exempt
// command skipped setupEnv.
func env(cmd *cobra.Command) (*cliEnv, error) {
	if cliEnvironment != nil {
		return cliEnvironment, nil
	}
	e, err := loadEnv(cmd)
	if err != nil {
		return nil, err
	}
	cliEnvironment = e
	return e, nil
}

// preferredPort returns the --port flag when given, else the configured port.
func (e *cliEnv) preferredPort(cmd *cobra.Command, flagValue int) (int, error) {
	if f := cmd.Flags().Lookup("port"); f == nil || !f.Changed {
		return e.cfg.Worker.Port, nil
	}
	if flagValue < config.MinPort || flagValue > config.MaxPort {
		return 0, exitcode.Usage(fmt.Sprintf("--port %d out of range %d-%d", flagValue, config.MinPort, config.MaxPort))
	}
	return flagValue, nil
}

func (e *cliEnv) binder() *session.Binder {
	return session.NewBinder(state.NewStore(e.paths), e.logf)
}

// ensureWorker makes sure a worker is up and reports how it got there.
func ensureWorker(cmd *cobra.Command, e *cliEnv, port int) (*worker.EnsureResult, error) {
	mgr, err := newManager(e)
	if err != nil {
		return nil, err
	}
	res, err := mgr.Ensure(cmd.Context(), port)
	if err != nil {
		return nil, err
	}
	e.logf("%s worker on port %d", describeAction(res.Action), res.Port)
	if line := describeEnsure(res); line != "" {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return res, nil
}

// describeEnsure renders the user-facing line for an Ensure result. Attaching
// to a healthy worker prints nothing, so repeated prompts stay quiet.
func describeEnsure(res *worker.EnsureResult) string {
	switch res.Action {
	case worker.ActionSpawned:
		return fmt.Sprintf("%s Worker ready on port %d%s", ui.RenderPassIcon(), res.Port, versionSuffix(res.Version))
	case worker.ActionAdopted:
		return fmt.Sprintf("%s Using worker already on port %d%s", ui.RenderPassIcon(), res.Port, versionSuffix(res.Version))
	default:
		return ""
	}
}

func versionSuffix(v string) string {
	if v == "" {
		return ""
	}
	return " (v" + v + ")"
}

func workerURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", ui.RenderWarnIcon(), fmt.Sprintf(format, args...))
}
