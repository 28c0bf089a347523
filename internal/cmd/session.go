package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipstream/slip/internal/exitcode"
	"github.com/slipstream/slip/internal/session"
	"github.com/slipstream/slip/internal/tui/picker"
	"github.com/slipstream/slip/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: GroupSessions,
	Short:   "List and attach to slip sessions",
	RunE:    requireSubcommand,
	Long: `List and attach to slip sessions.

Every terminal has its own session, named after the terminal device
(slip-_dev_ttys001 for /dev/ttys001). Prompts from the same terminal continue
that session.`,
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent slip sessions",
	Args:    cobra.NoArgs,
	RunE:    runSessionList,
}

var sessionAttachCmd = &cobra.Command{
	Use:   "attach [session]",
	Short: "Open a session in the interactive client",
	Long: `Open a session in the interactive OpenCode client.

The session may be a full id (slip-_dev_ttys001) or a terminal name (ttys001).
Without an argument, pick one from a list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionAttach,
}

var sessionIDCmd = &cobra.Command{
	Use:   "id",
	Short: "Print this terminal's session id",
	Args:  cobra.NoArgs,
	RunE:  runSessionID,
}

var sessionListLimit int

func init() {
	sessionListCmd.Flags().IntVarP(&sessionListLimit, "limit", "n", session.DefaultListLimit, "Maximum sessions to query")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionAttachCmd)
	sessionCmd.AddCommand(sessionIDCmd)

	rootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, args []string) error {
	sessions := listSessions(cmd.Context(), sessionListLimit)
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, ui.RenderMuted("No slipstream sessions found"))
		return nil
	}

	current := ""
	if tty := session.CurrentTTY(); tty != "" {
		current = session.IDFromTerminal(tty)
	}
	for _, s := range sessions {
		marker := "  "
		if s.ID == current {
			marker = ui.RenderAccent("* ")
		}
		fmt.Fprintf(out, "%s%s\n", marker, session.DisplayName(s))
	}
	return nil
}

func runSessionAttach(cmd *cobra.Command, args []string) error {
	var id string
	if len(args) == 1 {
		id = session.NormalizeID(args[0])
		if err := checkSessionExists(cmd, id); err != nil {
			return err
		}
	} else {
		chosen, err := chooseSession(cmd)
		if err != nil {
			return err
		}
		if chosen == "" {
			return nil
		}
		id = chosen
	}
	return runForeground(cmd.Context(), attachArgs(id))
}

// checkSessionExists rejects an id the client does not list. An empty listing
// means the client could not be queried, so the id is let through.
func checkSessionExists(cmd *cobra.Command, id string) error {
	sessions := listSessions(cmd.Context(), session.DefaultListLimit)
	if len(sessions) == 0 {
		return nil
	}
	for _, s := range sessions {
		if s.ID == id {
			return nil
		}
	}
	return exitcode.SessionNotFound(id)
}

// chooseSession shows the picker. An empty id with no error means there was
// nothing to pick or the user backed out.
func chooseSession(cmd *cobra.Command) (string, error) {
	if !ui.IsStdinTerminal() {
		return "", exitcode.Usage("session id required when stdin is not a terminal")
	}
	sessions := listSessions(cmd.Context(), session.DefaultListLimit)
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No slipstream sessions found"))
		return "", nil
	}
	id, err := picker.Run("Select a session:", sessions)
	if errors.Is(err, picker.ErrCancelled) {
		return "", nil
	}
	return id, err
}

func runSessionID(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	id, err := e.binder().Current()
	if err != nil {
		e.logf("%v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
