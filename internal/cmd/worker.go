package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/workerd"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Built-in worker (internal)",
	Hidden: true,
	RunE:   requireSubcommand,
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the built-in worker in the foreground (internal)",
	Long: `Run slip's built-in worker on localhost.

It answers the health and dispose endpoints and exits after worker.idle_timeout
without requests. Selected with worker.builtin = true; 'slip server start'
launches it detached with output appended to the worker log.`,
	Args: cobra.NoArgs,
	RunE: runWorkerRun,
}

var workerRunPort int

func init() {
	workerRunCmd.Flags().IntVarP(&workerRunPort, "port", "p", 0, "Port to listen on (default $SLIP_WORKER_PORT, then config)")

	workerCmd.AddCommand(workerRunCmd)
	rootCmd.AddCommand(workerCmd)
}

// workerListenPort is --port, then the port the launcher exported, then config.
func workerListenPort(cmd *cobra.Command, e *cliEnv) (int, error) {
	if !cmd.Flags().Changed("port") {
		if p, ok := config.WorkerPortFromEnv(); ok {
			return p, nil
		}
	}
	return e.preferredPort(cmd, workerRunPort)
}

func runWorkerRun(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	port, err := workerListenPort(cmd, e)
	if err != nil {
		return err
	}

	// Launched workers have stderr appended to the worker log.
	logger := log.New(cmd.ErrOrStderr(), "[worker] ", log.LstdFlags)

	srv := workerd.New(workerd.Config{
		Port:        port,
		Version:     Version,
		IdleTimeout: e.cfg.Worker.IdleTimeout.Duration,
		ConfigFile:  e.paths.ConfigFile(),
		Logger:      logger,
	})
	if err := srv.Run(cmd.Context()); err != nil {
		return fmt.Errorf("worker on port %d: %w", port, err)
	}
	return nil
}
