package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// opencodeBin is the client that talks to the worker.
const opencodeBin = "opencode"

var (
	promptNew   bool
	promptAgent string
	promptPort  int
	promptModel string
)

func runPrompt(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, `Usage: slip "your prompt here"`)
		fmt.Fprintln(out, "       slip --help")
		return nil
	}

	e, err := env(cmd)
	if err != nil {
		return err
	}
	port, err := e.preferredPort(cmd, promptPort)
	if err != nil {
		return err
	}

	// A new session is requested by omitting --session; the worker creates one.
	var sessionID string
	if !promptNew {
		sessionID, err = e.binder().Current()
		if err != nil {
			e.logf("%v", err)
		}
	}

	res, err := ensureWorker(cmd, e, port)
	if err != nil {
		return err
	}

	agent := promptAgent
	if agent == "" {
		agent = e.cfg.Run.Agent
	}
	model := promptModel
	if model == "" {
		model = e.cfg.Run.Model
	}
	return runForeground(cmd.Context(), runArgs(res.Port, agent, sessionID, model, prompt))
}

// runArgs is the argv that hands prompt to the worker on port.
func runArgs(port int, agent, sessionID, model, prompt string) []string {
	argv := []string{opencodeBin, "run", "--attach", workerURL(port), "--agent", agent}
	if sessionID != "" {
		argv = append(argv, "--session", sessionID)
	}
	if model != "" {
		argv = append(argv, "--model", model)
	}
	return append(argv, prompt)
}

// attachArgs is the argv that opens the interactive client on a session.
func attachArgs(sessionID string) []string {
	return []string{opencodeBin, "--session", sessionID}
}
