package cmd

import (
	"github.com/spf13/cobra"
)

// learnPrompt asks the learner agent to fold recent work into its skills.
const learnPrompt = "analyze recent activity and update skills"

var learnCmd = &cobra.Command{
	Use:     "learn",
	GroupID: GroupWork,
	Short:   "Learn from recent activity",
	Long: `Ask the learner agent (run.learner_agent, default "slipstream/learner") to
analyze recent activity in this terminal's session and update its skills.`,
	Args: cobra.NoArgs,
	RunE: runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)
}

func runLearn(cmd *cobra.Command, args []string) error {
	e, err := env(cmd)
	if err != nil {
		return err
	}
	sessionID, err := e.binder().Current()
	if err != nil {
		e.logf("%v", err)
	}
	res, err := ensureWorker(cmd, e, e.cfg.Worker.Port)
	if err != nil {
		return err
	}
	return runForeground(cmd.Context(), runArgs(res.Port, e.cfg.Run.LearnerAgent, sessionID, "", learnPrompt))
}
