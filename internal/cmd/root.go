// Package cmd provides CLI commands for the slip tool.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slipstream/slip/internal/exitcode"
	"github.com/slipstream/slip/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:     "slip [prompt...]",
	Short:   "Terminal AI assistant powered by OpenCode",
	Version: Version,
	Long: `slip sends a natural language prompt to a background OpenCode worker.

The first prompt starts the worker; later prompts reuse it. Each terminal gets
its own conversation, so follow-up prompts in the same terminal continue where
the last one left off.

Examples:
  slip "why is the build failing"
  slip -n "start over: summarize this repo"
  slip -m anthropic/claude-sonnet-4 "explain main.go"`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: setupEnv,
	RunE:              runPrompt,
	SilenceErrors:     true,
	SilenceUsage:      true,
}

// Commands that run without loading configuration.
var envExemptCommands = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
	"__complete": true,
}

// setupEnv loads paths and configuration once per invocation.
func setupEnv(cmd *cobra.Command, args []string) error {
	if envExemptCommands[cmd.Name()] {
		return nil
	}
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	cliEnvironment = e
	return nil
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var silent *silentExit
		if errors.As(err, &silent) {
			return silent.code
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFailIcon(), err)
		return exitcode.Code(err)
	}
	return exitcode.Success
}

// silentExit ends the command with a code and no message.
type silentExit struct {
	code int
}

func (e *silentExit) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

// Command group IDs - used by subcommands to organize help output
const (
	GroupWork     = "work"
	GroupSessions = "sessions"
	GroupServices = "services"
	GroupConfig   = "config"
	GroupDiag     = "diag"
)

func init() {
	// No prefix matching: the root command takes free-form prompt words.
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWork, Title: "Work:"},
		&cobra.Group{ID: GroupSessions, Title: "Sessions:"},
		&cobra.Group{ID: GroupServices, Title: "Worker:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)

	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show diagnostic output")

	rootCmd.Flags().BoolVarP(&promptNew, "new", "n", false, "Start a new session instead of continuing this terminal's")
	rootCmd.Flags().StringVarP(&promptAgent, "agent", "a", "", "Agent to use (default from config, \"slipstream\")")
	rootCmd.Flags().IntVarP(&promptPort, "port", "p", 0, "Preferred worker port (default from config, 4096)")
	rootCmd.Flags().StringVarP(&promptModel, "model", "m", "", "Model to use")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.Wrapf(exitcode.ErrUsage, err, "%s", buildCommandPath(cmd))
	})
}

// buildCommandPath walks the command hierarchy to build the full command path.
// For example: "slip server stop", "slip session attach", etc.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands like "slip server foobar", masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return exitcode.Usage(fmt.Sprintf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd)))
	}
	return exitcode.Usage(fmt.Sprintf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd)))
}
