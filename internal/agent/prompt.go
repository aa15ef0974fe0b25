package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const systemPrompt = `You are codeagent, a coding assistant working inside a developer's project directory. You answer questions about the code and carry out tasks by calling tools.

## Available Tools
- read_file: Read a file (relative paths resolve against the current directory)
- list_directory: List a directory; directories end with '/'
- search_code: Grep for a regex pattern under the current directory
- run_command: Run a shell command in the current directory
- change_directory: Change the current directory for later tool calls
- search_vectorstore: Semantic search over indexed code chunks
- add_to_vectorstore: Index one file so it can be searched
- index_codebase: Index every supported file under a directory

## Tool Selection
- Use search_vectorstore for questions about concepts ("where is auth handled?")
- Use search_code for exact identifiers, strings and error messages
- If search_vectorstore reports no results, index the codebase first and search again
- Read a file before describing or changing it
- Tool calls in one reply run in the order you list them

## Guidelines
1. Prefer a few precise tool calls over many broad ones
2. When a tool returns "Error executing ...", read the message and adjust the call
3. Cite file paths in answers
4. Stop calling tools once you can answer, and answer in markdown`

// taskTemplate wraps every user request.
const taskTemplate = `Complete the following task. Use the tools when you need information from the project or need to act on it. Reply with the final answer when done.

Task: %s`

// projectInstructionFiles are looked up in the working directory, first match wins.
var projectInstructionFiles = []string{"CODEAGENT.md", "AGENTS.md"}

func wrapTask(task string) string {
	return fmt.Sprintf(taskTemplate, strings.TrimSpace(task))
}

// buildSystemPrompt appends project instructions, when present, to the base prompt.
func buildSystemPrompt(instructions string) string {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n## Project Instructions\n" + instructions
}

// LoadProjectInstructions reads CODEAGENT.md or AGENTS.md from dir.
func LoadProjectInstructions(dir string) string {
	for _, name := range projectInstructionFiles {
		if content, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return string(content)
		}
	}
	return ""
}
