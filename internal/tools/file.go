package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/codeagent/internal/cache"
)

// ReadFileTool reads file contents through the file cache
type ReadFileTool struct {
	Cache *cache.PathCache
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Relative paths resolve against the current working directory."
}

func (t *ReadFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path of the file to read (relative or absolute).",
			},
		},
		"required": []string{"file_path"},
	}
}

func (t *ReadFileTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *ReadFileTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	path, err := requireString(input, "file_path")
	if err != nil {
		return "", err
	}
	abs := s.Resolve(path)

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("File %s does not exist", abs)}
		}
		return "", err
	}
	if info.IsDir() {
		return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("%s is a directory, not a file", abs)}
	}

	return load(t.Cache, abs, readFile)
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListDirectoryTool lists directory entries through the directory cache
type ListDirectoryTool struct {
	Cache *cache.PathCache
}

func (t *ListDirectoryTool) Name() string {
	return "list_directory"
}

func (t *ListDirectoryTool) Description() string {
	return "List the files and directories in a directory. Defaults to the current working directory. Directories end with '/'."
}

func (t *ListDirectoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to list (default: current working directory).",
			},
		},
	}
}

func (t *ListDirectoryTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *ListDirectoryTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	path, _ := stringArg(input, "path")
	abs := s.Resolve(path)

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("Directory %s does not exist", abs)}
		}
		return "", err
	}
	if !info.IsDir() {
		return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("%s is not a directory", abs)}
	}

	listing, err := load(t.Cache, abs, listDirectory)
	if err != nil {
		return "", err
	}
	if listing == "" {
		return "(empty directory)", nil
	}
	return listing, nil
}

func listDirectory(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// load reads through c, or directly when c is nil.
func load(c *cache.PathCache, path string, loader cache.Loader) (string, error) {
	if c == nil {
		return loader(path)
	}
	return c.GetOrLoad(path, loader)
}

// ChangeDirectoryTool moves the session working directory
type ChangeDirectoryTool struct{}

func (t *ChangeDirectoryTool) Name() string {
	return "change_directory"
}

func (t *ChangeDirectoryTool) Description() string {
	return "Change the working directory used by all subsequent tool calls."
}

func (t *ChangeDirectoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to switch to (relative or absolute).",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ChangeDirectoryTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *ChangeDirectoryTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	path, err := requireString(input, "path")
	if err != nil {
		return "", err
	}
	dir, err := s.Chdir(path)
	if err != nil {
		return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("Directory %s does not exist", dir)}
	}
	return fmt.Sprintf("Changed directory to %s", dir), nil
}
