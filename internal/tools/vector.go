package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/index"
)

// VectorIndex is the part of the index the vector store tools use.
type VectorIndex interface {
	Query(ctx context.Context, q index.Query, k int) ([]index.Result, error)
	IndexFile(ctx context.Context, path string) (int, error)
	IndexDirectory(ctx context.Context, dir string) (index.Stats, error)
}

var errNoIndex = &ToolError{Kind: KindExecution, Message: "vector store is not configured"}

// SearchVectorstoreTool runs a semantic search over indexed chunks
type SearchVectorstoreTool struct {
	Index VectorIndex
}

func (t *SearchVectorstoreTool) Name() string {
	return "search_vectorstore"
}

func (t *SearchVectorstoreTool) Description() string {
	return "Semantic search over the indexed codebase. Finds code by meaning rather than exact text. Run index_codebase first if the store is empty."
}

func (t *SearchVectorstoreTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural language description of what to find.",
			},
			"k": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (default: 5).",
				"default":     5,
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchVectorstoreTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *SearchVectorstoreTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	if t.Index == nil {
		return "", errNoIndex
	}
	query, err := requireString(input, "query")
	if err != nil {
		return "", err
	}
	k := intArg(input, "k", 5)

	results, err := t.Index.Query(ctx, index.Query{Text: query}, k)
	if errors.Is(err, index.ErrNoResults) {
		return "No results found.", nil
	}
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}
	return FormatResults(results), nil
}

// FormatResults renders ranked chunks as markdown.
func FormatResults(results []index.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results:\n\n", len(results))
	for i, r := range results {
		lang := strings.TrimPrefix(filepath.Ext(r.Source), ".")
		fmt.Fprintf(&sb, "### Result %d (%.2f%% match)\n", i+1, r.Score*100)
		fmt.Fprintf(&sb, "**File:** %s (chunk %d)\n", r.Source, r.Ordinal)
		sb.WriteString("```" + lang + "\n")
		sb.WriteString(r.ChunkText)
		if !strings.HasSuffix(r.ChunkText, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}
	return sb.String()
}

// AddToVectorstoreTool indexes a single file
type AddToVectorstoreTool struct {
	Index VectorIndex
}

func (t *AddToVectorstoreTool) Name() string {
	return "add_to_vectorstore"
}

func (t *AddToVectorstoreTool) Description() string {
	return "Add or refresh one file in the vector store. Existing chunks of the file are replaced."
}

func (t *AddToVectorstoreTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path of the file to index.",
			},
		},
		"required": []string{"file_path"},
	}
}

func (t *AddToVectorstoreTool) Permission() PermissionLevel {
	return PermissionWrite
}

func (t *AddToVectorstoreTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	if t.Index == nil {
		return "", errNoIndex
	}
	path, err := requireString(input, "file_path")
	if err != nil {
		return "", err
	}
	abs := s.Resolve(path)
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("File %s does not exist", abs)}
	}

	n, err := t.Index.IndexFile(ctx, abs)
	if err != nil {
		return "", indexError(err)
	}
	return fmt.Sprintf("Added %s to vector store (%d chunks)", abs, n), nil
}

// IndexCodebaseTool indexes a directory tree
type IndexCodebaseTool struct {
	Index VectorIndex
}

func (t *IndexCodebaseTool) Name() string {
	return "index_codebase"
}

func (t *IndexCodebaseTool) Description() string {
	return "Index every source file under a directory (default: current working directory) into the vector store, skipping dependency, cache and hidden directories."
}

func (t *IndexCodebaseTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"directory_path": map[string]any{
				"type":        "string",
				"description": "Directory to index (default: current working directory).",
			},
		},
	}
}

func (t *IndexCodebaseTool) Permission() PermissionLevel {
	return PermissionWrite
}

func (t *IndexCodebaseTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	if t.Index == nil {
		return "", errNoIndex
	}
	dir, _ := stringArg(input, "directory_path")
	abs := s.Resolve(dir)
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("Directory %s does not exist", abs)}
	}

	stats, err := t.Index.IndexDirectory(ctx, abs)
	if err != nil {
		return "", indexError(err)
	}
	return stats.String(), nil
}

// indexError keeps the operator hint of index errors intact.
func indexError(err error) error {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return &ToolError{Kind: KindExecution, Message: apperr.GetUserMessage(err)}
	}
	return err
}
