package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupConfig,
	Short:   "Inspect and create slip's configuration",
	RunE:    requireSubcommand,
	Long: `Inspect and create slip's configuration.

Configuration lives in config.toml under $SLIP_CONFIG_DIR, by default
~/.config/opencode/slipstream. SLIP_PORT and SLIP_VERBOSE override the file.
The running worker picks up idle_timeout changes without a restart.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config and cache locations",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration in effect: config.toml over the defaults, with environment overrides applied and out-of-range values clamped.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.toml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config.toml")

	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config:  %s\n", e.paths.ConfigFile())
	fmt.Fprintf(out, "Cache:   %s\n", e.paths.CacheDir)
	fmt.Fprintf(out, "Log:     %s\n", e.paths.WorkerLogFile())
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(e.cfg)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	path := e.paths.ConfigFile()
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", ui.ShortenPath(path))
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.RenderPassIcon(), ui.ShortenPath(path))
	return nil
}
