package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/slipstream/slip/internal/exitcode"
	"github.com/slipstream/slip/internal/ui"
	"github.com/slipstream/slip/internal/worker"
)

var serverCmd = &cobra.Command{
	Use:     "server",
	GroupID: GroupServices,
	Short:   "Manage the background worker",
	RunE:    requireSubcommand,
	Long: `Manage the background worker that answers prompts.

Prompts start the worker on demand, so these commands are only needed to
inspect it, restart it after changing its configuration, or shut it down.
A worker with no activity for worker.idle_timeout shuts itself down.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the worker",
	Long:  `Start the worker if no healthy one is running. Reports the existing worker otherwise.`,
	RunE:  runServerStart,
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the worker",
	Long: `Stop the worker.

The tracked worker is asked to shut down over HTTP. If it does not answer, or
no worker is tracked, processes matching worker.kill_pattern are terminated.`,
	RunE: runServerStop,
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worker status",
	Long:  `Show the tracked worker's health, version and process details. Exits 1 when no healthy worker answers.`,
	RunE:  runServerStatus,
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the worker",
	Long:  `Shut down the tracked worker, wait for its port to close, and start a fresh one.`,
	RunE:  runServerRestart,
}

var serverLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View worker logs",
	Long:  `View the worker log file. Launched workers write their output there.`,
	RunE:  runServerLogs,
}

var (
	serverPort      int
	serverLogLines  int
	serverLogFollow bool
)

func init() {
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverRestartCmd)
	serverCmd.AddCommand(serverLogsCmd)

	for _, c := range []*cobra.Command{serverStartCmd, serverRestartCmd, serverStatusCmd} {
		c.Flags().IntVarP(&serverPort, "port", "p", 0, "Preferred worker port (default from config)")
	}
	serverLogsCmd.Flags().IntVarP(&serverLogLines, "lines", "n", 50, "Number of lines to show")
	serverLogsCmd.Flags().BoolVarP(&serverLogFollow, "follow", "f", false, "Follow log output")

	rootCmd.AddCommand(serverCmd)
}

func runServerStart(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	port, err := e.preferredPort(cmd, serverPort)
	if err != nil {
		return err
	}
	res, err := ensureWorker(cmd, e, port)
	if err != nil {
		return err
	}
	if res.Action == worker.ActionAttached {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Worker healthy on port %d%s\n", ui.RenderPassIcon(), res.Port, versionSuffix(res.Version))
	}
	return nil
}

func runServerStop(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	mgr, err := newManager(e)
	if err != nil {
		return err
	}
	res, err := mgr.Stop(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeStop(res, e.cfg.Worker.EffectiveKillPattern()))
	return nil
}

// describeStop renders the outcome of a stop. The user always sees a stopped
// worker; the method is detail.
func describeStop(res *worker.StopResult, pattern string) string {
	switch {
	case res.Method == worker.StopGraceful:
		return fmt.Sprintf("%s Worker on port %d stopped gracefully", ui.RenderPassIcon(), res.Port)
	case res.Port != 0:
		return fmt.Sprintf("%s Worker on port %d force-stopped %s", ui.RenderPassIcon(), res.Port,
			ui.RenderMuted(fmt.Sprintf("(%s)", processCount(res.Killed))))
	case res.Killed > 0:
		return fmt.Sprintf("%s No tracked worker, stopped %s matching %q", ui.RenderPassIcon(), processCount(res.Killed), pattern)
	default:
		return fmt.Sprintf("%s No worker running", ui.RenderPassIcon())
	}
}

func processCount(n int) string {
	if n == 1 {
		return "1 process"
	}
	return strconv.Itoa(n) + " processes"
}

func runServerStatus(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	port, err := e.preferredPort(cmd, serverPort)
	if err != nil {
		return err
	}
	mgr, err := newManager(e)
	if err != nil {
		return err
	}
	st, err := mgr.Status(cmd.Context(), port)
	if err != nil {
		return err
	}
	renderStatus(cmd.OutOrStdout(), st)
	if !st.Running() {
		return &silentExit{code: 1}
	}
	return nil
}

var titleCaser = cases.Title(language.English)

// statusLabel is the worker state as shown in the status header.
func statusLabel(st *worker.Status) string {
	return titleCaser.String(string(st.State()))
}

// describeAction names how a worker was obtained, for verbose output.
func describeAction(a worker.Action) string {
	return titleCaser.String(string(a))
}

func renderStatus(w io.Writer, st *worker.Status) {
	state := st.State()
	icon := ui.RenderFailIcon()
	switch state {
	case worker.StateRunning:
		icon = ui.RenderPassIcon()
	case worker.StateUntracked:
		icon = ui.RenderWarnIcon()
	case worker.StateStopped:
		icon = ui.RenderMuted(ui.IconFail)
	}
	fmt.Fprintf(w, "%s Worker: %s\n", icon, statusLabel(st))

	if state == worker.StateStopped {
		fmt.Fprintf(w, "  %s\n", ui.RenderMuted(fmt.Sprintf("nothing answering on port %d", st.Port)))
		return
	}
	fmt.Fprintf(w, "  Port:     %d%s\n", st.Port, versionSuffix(st.Health.Version))
	if !st.Recorded() {
		fmt.Fprintf(w, "  %s\n", ui.RenderMuted("the next prompt adopts it"))
		return
	}

	rec := st.Record
	if rec.StartedAt != nil {
		fmt.Fprintf(w, "  Started:  %s\n", ui.RelativeTime(*rec.StartedAt))
	}
	if rec.PID > 0 {
		fmt.Fprintf(w, "  PID:      %d\n", rec.PID)
	}
	if p := st.Process; p != nil {
		if p.RSS > 0 {
			fmt.Fprintf(w, "  Memory:   %s\n", ui.FormatBytes(p.RSS))
		}
		if p.Cmdline != "" {
			fmt.Fprintf(w, "  Command:  %s\n", ui.RenderMuted(p.Cmdline))
		}
	}
}

func runServerRestart(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	port, err := e.preferredPort(cmd, serverPort)
	if err != nil {
		return err
	}
	mgr, err := newManager(e)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Restarting worker...")
	res, err := mgr.Restart(cmd.Context(), port)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Worker restarted on port %d%s\n", ui.RenderPassIcon(), res.Port, versionSuffix(res.Version))
	return nil
}

func runServerLogs(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	logFile := e.paths.WorkerLogFile()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return exitcode.FileNotFound(ui.ShortenPath(logFile))
	}

	var tailCmd *exec.Cmd
	if serverLogFollow {
		tailCmd = exec.CommandContext(cmd.Context(), "tail", "-f", logFile)
	} else {
		tailCmd = exec.CommandContext(cmd.Context(), "tail", "-n", strconv.Itoa(serverLogLines), logFile) //nolint:gosec // G204: fixed binary, path under the cache dir
	}
	tailCmd.Stdout = cmd.OutOrStdout()
	tailCmd.Stderr = cmd.ErrOrStderr()
	return tailCmd.Run()
}
