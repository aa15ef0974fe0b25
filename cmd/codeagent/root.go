package main

import (
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codeagent/internal/agent"
)

var (
	flagConfig    string
	flagDir       string
	flagProvider  string
	flagModel     string
	flagVerbose   bool
	flagAuto      bool
	flagAsk       bool
	flagStrict    bool
	flagEphemeral bool
)

var rootCmd = &cobra.Command{
	Use:          "codeagent",
	Short:        "codeagent - a local coding assistant with tools and a vector index",
	SilenceUsage: true,
	Long: `codeagent answers questions about a codebase and carries out tasks by
calling tools: reading files, grepping, running commands and searching a
local vector index of the code.

Run without arguments for an interactive session.

Config files (first found wins):
  ./codeagent.yaml
  ./.codeagent/config.yaml
  ~/.config/codeagent/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (skips the search)")
	pf.StringVarP(&flagDir, "dir", "C", "", "working directory for tools (default: current directory)")
	pf.StringVar(&flagProvider, "provider", "", "model provider: ollama or anthropic")
	pf.StringVarP(&flagModel, "model", "m", "", "chat model name")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&flagAuto, "auto", false, "run every tool without asking")
	pf.BoolVar(&flagAsk, "ask", false, "ask before index writes and shell commands")
	pf.BoolVar(&flagStrict, "strict", false, "ask before every tool call")
	pf.BoolVar(&flagEphemeral, "ephemeral", false, "keep the vector index in memory for this run only")
	rootCmd.MarkFlagsMutuallyExclusive("auto", "ask", "strict")
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ag, client, err := a.newAgent(agent.NewCLIOutput(a.out, a.cfg.Agent.ShowToolCalls), true)
	if err != nil {
		return err
	}
	defer client.Close()

	return ag.Interactive(cmd.Context())
}
