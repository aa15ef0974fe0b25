package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codeagent/internal/index"
)

var (
	flagRebuild bool
	flagSearchK int
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index the supported files under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	indexCmd.Flags().BoolVar(&flagRebuild, "rebuild", false, "drop the collection before indexing")
	searchCmd.Flags().IntVarP(&flagSearchK, "top-k", "k", 5, "number of results")
	rootCmd.AddCommand(indexCmd, searchCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	if flagRebuild {
		if err := ix.Rebuild(ctx); err != nil {
			return err
		}
		a.out.Info("Dropped collection " + ix.Collection())
	}

	a.out.Info(fmt.Sprintf("Indexing %s with %s", dir, a.cfg.EmbeddingModelID()))
	stats, err := ix.IndexDirectory(ctx, dir)
	if err != nil {
		return err
	}

	a.out.Success(stats.String())
	details := fmt.Sprintf("%d chunks", stats.Chunks)
	if stats.Skipped > 0 || stats.Failed > 0 {
		details += fmt.Sprintf(", %d skipped, %d failed", stats.Skipped, stats.Failed)
	}
	a.out.Info(details)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ix, err := a.openIndex()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	results, err := ix.Query(cmd.Context(), index.Query{Text: query}, flagSearchK)
	if errors.Is(err, index.ErrNoResults) || (err == nil && len(results) == 0) {
		a.out.Warning("No results found. Run 'codeagent index' first.")
		return nil
	}
	if err != nil {
		return err
	}

	for i, r := range results {
		name := r.Source
		if rel, err := filepath.Rel(a.session.Dir(), r.Source); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
		a.out.Header(fmt.Sprintf("%d. %s #%d (score %.3f)", i+1, name, r.Ordinal, r.Score))
		a.out.TextLn(r.ChunkText)
	}
	return nil
}
