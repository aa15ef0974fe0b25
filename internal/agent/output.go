package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/abdul-hamid-achik/codeagent/internal/permissions"
	"github.com/abdul-hamid-achik/codeagent/internal/tools"
	"github.com/abdul-hamid-achik/codeagent/internal/ui"
)

// Output receives the visible side of a request.
type Output interface {
	ToolCall(call tools.Call)
	ToolResult(call tools.Call, res tools.Result)
	Answer(text string)
	Warning(msg string)
}

// CLIOutput renders to the terminal through ui.OutputHandler.
type CLIOutput struct {
	out           *ui.OutputHandler
	showToolCalls bool
}

// NewCLIOutput creates a terminal output. Tool traffic is shown only
// when showToolCalls is set.
func NewCLIOutput(out *ui.OutputHandler, showToolCalls bool) *CLIOutput {
	return &CLIOutput{out: out, showToolCalls: showToolCalls}
}

func (c *CLIOutput) ToolCall(call tools.Call) {
	if c.showToolCalls {
		c.out.ToolCall(call.Name, permissions.Describe(call))
	}
}

func (c *CLIOutput) ToolResult(call tools.Call, res tools.Result) {
	if !c.showToolCalls {
		return
	}
	switch {
	case res.Failed():
	case call.Name == "read_file":
		path, _ := call.Input["file_path"].(string)
		c.out.FilePreview(call.Name, path, res.Output)
		return
	case call.Name == "search_code":
		c.out.MatchesPreview(call.Name, res.Output)
		return
	}
	c.out.ToolResult(call.Name, res.Text(), res.Failed())
}

func (c *CLIOutput) Answer(text string) {
	c.out.Answer(text)
}

func (c *CLIOutput) Warning(msg string) {
	c.out.Warning(msg)
}

// HeadlessOutput prints only the answer, for scripts and pipes.
// Warnings go to stderr.
type HeadlessOutput struct {
	out    io.Writer
	errOut io.Writer
}

// NewHeadlessOutput writes answers to stdout and warnings to stderr.
func NewHeadlessOutput() *HeadlessOutput {
	return &HeadlessOutput{out: os.Stdout, errOut: os.Stderr}
}

// NewHeadlessOutputTo writes to the given streams.
func NewHeadlessOutputTo(out, errOut io.Writer) *HeadlessOutput {
	return &HeadlessOutput{out: out, errOut: errOut}
}

func (h *HeadlessOutput) ToolCall(tools.Call)                 {}
func (h *HeadlessOutput) ToolResult(tools.Call, tools.Result) {}

func (h *HeadlessOutput) Answer(text string) {
	fmt.Fprintln(h.out, text)
}

func (h *HeadlessOutput) Warning(msg string) {
	fmt.Fprintln(h.errOut, "warning: "+msg)
}

// JSONToolCall is one tool invocation in a JSON report.
type JSONToolCall struct {
	Name    string         `json:"name"`
	Input   map[string]any `json:"input"`
	Result  string         `json:"result"`
	IsError bool           `json:"is_error"`
}

// JSONReport is the document written by JSONOutput.
type JSONReport struct {
	Task       string         `json:"task"`
	Answer     string         `json:"answer"`
	ToolCalls  []JSONToolCall `json:"tool_calls"`
	Warnings   []string       `json:"warnings,omitempty"`
	Iterations int            `json:"iterations"`
	Exhausted  bool           `json:"exhausted"`
	Error      string         `json:"error,omitempty"`
}

// JSONOutput collects a request and writes it as one JSON document.
type JSONOutput struct {
	mu     sync.Mutex
	report JSONReport
}

// NewJSONOutput creates a collector for task.
func NewJSONOutput(task string) *JSONOutput {
	return &JSONOutput{report: JSONReport{Task: task, ToolCalls: []JSONToolCall{}}}
}

func (j *JSONOutput) ToolCall(tools.Call) {}

func (j *JSONOutput) ToolResult(call tools.Call, res tools.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report.ToolCalls = append(j.report.ToolCalls, JSONToolCall{
		Name:    call.Name,
		Input:   call.Input,
		Result:  res.Text(),
		IsError: res.Failed(),
	})
}

func (j *JSONOutput) Answer(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report.Answer = text
}

func (j *JSONOutput) Warning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report.Warnings = append(j.report.Warnings, msg)
}

// Emit writes the report, folding in the outcome and error of the run.
func (j *JSONOutput) Emit(w io.Writer, outcome *Outcome, runErr error) error {
	j.mu.Lock()
	report := j.report
	j.mu.Unlock()

	if outcome != nil {
		report.Iterations = outcome.Iterations
		report.Exhausted = outcome.Exhausted
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
