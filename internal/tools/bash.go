package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultCommandTimeout = 2 * time.Minute
	defaultMaxOutput      = 50000
)

// allowedEnvVars is the allowlist of environment variables passed to commands.
var allowedEnvVars = []string{
	"PATH",
	"HOME",
	"USER",
	"LANG",
	"TERM",
	"GOPATH",
	"GOROOT",
	"TMPDIR",
	"VIRTUAL_ENV",
}

// SanitizedEnv returns an environment slice containing only allowlisted variables.
func SanitizedEnv() []string {
	var env []string
	for _, key := range allowedEnvVars {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// RunCommandTool executes bash commands in the session directory
type RunCommandTool struct {
	Timeout        time.Duration
	MaxOutput      int
	BlockDangerous bool
	// Sandbox, when set, wraps every command.
	Sandbox Sandbox
}

func (t *RunCommandTool) Name() string {
	return "run_command"
}

func (t *RunCommandTool) Description() string {
	return "Run a bash command in the current working directory and return its stdout and stderr. Use for builds, tests, git and other shell work."
}

func (t *RunCommandTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The bash command to execute.",
			},
		},
		"required": []string{"command"},
	}
}

func (t *RunCommandTool) Permission() PermissionLevel {
	return PermissionExecute
}

func (t *RunCommandTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	command, err := requireString(input, "command")
	if err != nil {
		return "", err
	}

	if t.BlockDangerous {
		if err := CheckCommandSafety(command); err != nil {
			return "", err
		}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exe, args := "bash", []string{"-c", command}
	if t.Sandbox != nil {
		exe, args, err = t.Sandbox.Wrap(command, s.Dir())
		if err != nil {
			return "", err
		}
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = s.Dir()
	cmd.Env = SanitizedEnv()
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	var result strings.Builder
	result.Write(stdout.Bytes())
	if stderr.Len() > 0 {
		if result.Len() > 0 && !strings.HasSuffix(result.String(), "\n") {
			result.WriteString("\n")
		}
		result.WriteString("STDERR:\n")
		result.Write(stderr.Bytes())
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &ToolError{Kind: KindExecution, Message: fmt.Sprintf("command timed out after %s", timeout)}
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", err
		}
		// A non-zero exit is output, not a tool failure.
		if result.Len() > 0 {
			result.WriteString("\n")
		}
		fmt.Fprintf(&result, "Exit code: %d", exitErr.ExitCode())
	}

	output := result.String()
	if output == "" {
		output = "(no output)"
	}
	return truncate(output, t.MaxOutput), nil
}

// SearchCodeTool searches file contents with ripgrep, falling back to grep
type SearchCodeTool struct {
	MaxOutput int
}

func (t *SearchCodeTool) Name() string {
	return "search_code"
}

func (t *SearchCodeTool) Description() string {
	return "Search for a regex pattern in files under a path (default: current working directory). Returns matching lines with file names and line numbers."
}

func (t *SearchCodeTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "The regex pattern to search for.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File or directory to search (default: current working directory).",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *SearchCodeTool) Permission() PermissionLevel {
	return PermissionRead
}

func (t *SearchCodeTool) Execute(ctx context.Context, s *Session, input map[string]any) (string, error) {
	pattern, err := requireString(input, "pattern")
	if err != nil {
		return "", err
	}
	p, _ := stringArg(input, "path")
	path := s.Resolve(p)
	if _, err := os.Stat(path); err != nil {
		return "", &ToolError{Kind: KindIO, Message: fmt.Sprintf("Path %s does not exist", path)}
	}

	name, args := "grep", []string{"-r", "-n", "-E", "-I", "--", pattern, path}
	if rg, err := exec.LookPath("rg"); err == nil {
		name, args = rg, []string{"--color=never", "-n", "--no-heading", "--", pattern, path}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = s.Dir()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		// Both tools exit 1 when nothing matched.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "No matches found.", nil
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &ToolError{Kind: KindExecution, Message: "search failed: " + msg}
	}

	if stdout.Len() == 0 {
		return "No matches found.", nil
	}
	return truncate(stdout.String(), t.MaxOutput), nil
}

func truncate(s string, max int) string {
	if max <= 0 {
		max = defaultMaxOutput
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (output truncated)"
}
