package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codeagent/internal/mcpserver"
	"github.com/abdul-hamid-achik/codeagent/internal/watcher"
)

var flagWatchInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the index up to date as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP on stdin/stdout",
	Long: `Serve the tool catalog to an MCP client over stdio. All calls share one
working directory, so change_directory affects later calls.

Nobody can answer permission prompts here: in ask mode, index writes and
shell commands are denied. Use --auto to allow them.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	watchCmd.Flags().BoolVar(&flagWatchInitial, "initial", true, "index the directory before watching")
	rootCmd.AddCommand(watchCmd, mcpCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ix, err := a.openIndex()
	if err != nil {
		return err
	}
	dir := a.session.Dir()
	if len(args) == 1 {
		dir = a.session.Resolve(args[0])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flagWatchInitial {
		stats, err := ix.IndexDirectory(ctx, dir)
		if err != nil {
			return err
		}
		a.out.Success(stats.String())
	}

	w, err := watcher.New(ix, watcher.OptionsFromConfig(a.cfg), a.log)
	if err != nil {
		return err
	}
	defer w.Close()
	w.OnChange = func(c watcher.Change) {
		switch {
		case c.Err != nil:
			a.out.ErrorStr(fmt.Sprintf("%s: %v", c.Path, c.Err))
		case c.Removed:
			a.out.Info(fmt.Sprintf("removed %s (%d chunks)", c.Path, c.Chunks))
		default:
			a.out.Info(fmt.Sprintf("indexed %s (%d chunks)", c.Path, c.Chunks))
		}
	}

	a.out.Info("Watching " + dir + " (Ctrl+C to stop)")
	return w.Run(ctx, dir)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.buildRegistry(false)
	if err != nil {
		return err
	}
	return mcpserver.New(reg, a.session, Version, a.log).Run(cmd.Context())
}
