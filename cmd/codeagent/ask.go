package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codeagent/internal/agent"
)

var (
	flagAskJSON  bool
	flagAskQuiet bool
)

var askCmd = &cobra.Command{
	Use:   "ask <task>",
	Short: "Run one task and print the answer",
	Example: `  codeagent ask "where is the config loaded?"
  codeagent ask --json "list the TODOs in internal/" | jq .answer`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&flagAskJSON, "json", false, "print a JSON report with the tool calls")
	askCmd.Flags().BoolVarP(&flagAskQuiet, "quiet", "q", false, "print only the answer, as plain text")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	task := strings.Join(args, " ")

	var output agent.Output
	var report *agent.JSONOutput
	switch {
	case flagAskJSON:
		report = agent.NewJSONOutput(task)
		output = report
	case flagAskQuiet:
		output = agent.NewHeadlessOutput()
	default:
		output = agent.NewCLIOutput(a.out, a.cfg.Agent.ShowToolCalls)
	}

	// With no terminal to answer prompts, ask-mode writes are denied.
	ag, client, err := a.newAgent(output, a.out.IsTTY() && !flagAskJSON)
	if err != nil {
		return err
	}
	defer client.Close()

	outcome, runErr := ag.Run(cmd.Context(), task)
	if report != nil {
		if err := report.Emit(os.Stdout, outcome, runErr); err != nil {
			return err
		}
	}
	return runErr
}
