package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/llm"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"github.com/abdul-hamid-achik/codeagent/internal/tools"
	"github.com/abdul-hamid-achik/codeagent/internal/ui"
)

// recordingTool records the order of its executions.
type recordingTool struct {
	name  string
	order *[]string
}

func (t *recordingTool) Name() string                      { return t.name }
func (t *recordingTool) Description() string               { return "records calls" }
func (t *recordingTool) Permission() tools.PermissionLevel { return tools.PermissionRead }
func (t *recordingTool) InputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *recordingTool) Execute(_ context.Context, s *tools.Session, _ map[string]any) (string, error) {
	*t.order = append(*t.order, t.name)
	return t.name + " ran in " + s.Dir(), nil
}

type harness struct {
	agent   *Agent
	llm     *llm.MockLLMClient
	session *tools.Session
	dir     string
	order   []string
	out     *bytes.Buffer
}

func newHarness(t *testing.T, maxIter int, script ...*llm.Response) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), out: &bytes.Buffer{}}

	session, err := tools.NewSession(h.dir)
	if err != nil {
		t.Fatal(err)
	}
	h.session = session

	reg := tools.NewRegistry(nil)
	reg.Register(&tools.ReadFileTool{})
	reg.Register(&tools.ChangeDirectoryTool{})
	reg.Register(&recordingTool{name: "first", order: &h.order})
	reg.Register(&recordingTool{name: "second", order: &h.order})

	h.llm = llm.NewMockLLMClient(script...)
	a, err := New(Config{
		LLM:           h.llm,
		Tools:         reg,
		Session:       session,
		Output:        NewHeadlessOutputTo(h.out, h.out),
		MaxIterations: maxIter,
		Log:           logging.NewWriter(&bytes.Buffer{}, logging.LevelDebug),
	})
	if err != nil {
		t.Fatal(err)
	}
	h.agent = a
	return h
}

func toolCalls(calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{ToolCalls: calls, StopReason: "tool_use"}
}

func answer(text string) *llm.Response {
	return &llm.Response{Content: text, StopReason: "end_turn", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without LLM, Tools and Session")
	}
}

func TestRun_FinalAnswerWithoutTools(t *testing.T) {
	h := newHarness(t, 0, answer("hello"))

	outcome, err := h.agent.Run(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Answer != "hello" || outcome.Iterations != 0 || outcome.Exhausted {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if outcome.Usage.InputTokens != 10 {
		t.Errorf("usage not accumulated: %+v", outcome.Usage)
	}
	if !strings.Contains(h.out.String(), "hello") {
		t.Errorf("answer not written: %q", h.out.String())
	}

	call, _ := h.llm.LastCall()
	if len(call.Messages) != 1 || call.Messages[0].Role != llm.RoleUser {
		t.Fatalf("expected one user message, got %+v", call.Messages)
	}
	if !strings.Contains(call.Messages[0].Content, "Task: say hi") {
		t.Errorf("task not wrapped in template: %q", call.Messages[0].Content)
	}
	if len(call.Tools) != 4 {
		t.Errorf("expected 4 tool definitions, got %d", len(call.Tools))
	}
	if !strings.Contains(call.SystemPrompt, "search_vectorstore") {
		t.Error("system prompt should describe the tools")
	}
	if h.agent.State() != StateAwaitingUserInput {
		t.Errorf("expected AwaitingUserInput after answer, got %s", h.agent.State())
	}
}

func TestRun_ToolsRunInOrderAndBatch(t *testing.T) {
	sub := "pkg"
	h := newHarness(t, 0,
		toolCalls(
			llm.ToolCall{ID: "c1", Name: "second"},
			llm.ToolCall{ID: "c2", Name: "change_directory", Input: map[string]any{"path": sub}},
			llm.ToolCall{ID: "c3", Name: "first"},
		),
		answer("done"),
	)
	if err := os.Mkdir(filepath.Join(h.dir, sub), 0755); err != nil {
		t.Fatal(err)
	}

	outcome, err := h.agent.Run(context.Background(), "work")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Iterations != 1 || outcome.ToolCalls != 3 {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if strings.Join(h.order, ",") != "second,first" {
		t.Errorf("tools ran out of order: %v", h.order)
	}

	// user, assistant(tool calls), one batched tool message
	call, _ := h.llm.LastCall()
	if len(call.Messages) != 3 {
		t.Fatalf("expected 3 messages before final answer, got %d", len(call.Messages))
	}
	batch := call.Messages[2]
	if batch.Role != llm.RoleTool || len(batch.ToolResults) != 3 {
		t.Fatalf("expected one batched tool message with 3 results, got %+v", batch)
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		if batch.ToolResults[i].CallID != id {
			t.Errorf("result %d has call id %s, want %s", i, batch.ToolResults[i].CallID, id)
		}
	}
	// change_directory applies to the calls after it in the same batch
	want := filepath.Join(h.dir, sub)
	if !strings.HasSuffix(batch.ToolResults[2].Content, want) {
		t.Errorf("first should run in %s, got %q", want, batch.ToolResults[2].Content)
	}
	if !strings.HasSuffix(batch.ToolResults[0].Content, h.dir) {
		t.Errorf("second should run in the original dir, got %q", batch.ToolResults[0].Content)
	}
}

func TestRun_ToolFailureFedBackToModel(t *testing.T) {
	h := newHarness(t, 0,
		toolCalls(
			llm.ToolCall{ID: "c1", Name: "delete_everything"},
			llm.ToolCall{ID: "c2", Name: "read_file", Input: map[string]any{"file_path": "missing.txt"}},
		),
		answer("recovered"),
	)

	outcome, err := h.agent.Run(context.Background(), "break things")
	if err != nil {
		t.Fatalf("tool failures must not fail the request: %v", err)
	}
	if outcome.Answer != "recovered" {
		t.Errorf("unexpected answer %q", outcome.Answer)
	}

	call, _ := h.llm.LastCall()
	results := call.Messages[2].ToolResults
	if !results[0].IsError || !strings.HasPrefix(results[0].Content, "Error executing delete_everything: ") {
		t.Errorf("unknown tool result = %+v", results[0])
	}
	if !results[1].IsError || !strings.HasPrefix(results[1].Content, "Error executing read_file: ") {
		t.Errorf("missing file result = %+v", results[1])
	}
}

func TestRun_IterationCap(t *testing.T) {
	h := newHarness(t, 2)
	h.llm.ChatFunc = func(context.Context, []llm.Message, []llm.ToolDefinition, string) (*llm.Response, error) {
		return toolCalls(llm.ToolCall{ID: "loop", Name: "first"}), nil
	}

	outcome, err := h.agent.Run(context.Background(), "never stop")
	if err != nil {
		t.Fatalf("hitting the cap must not be an error: %v", err)
	}
	if !outcome.Exhausted {
		t.Error("expected Exhausted")
	}
	if outcome.Iterations != 2 || len(h.order) != 2 {
		t.Errorf("expected 2 executed rounds, got %d (ran %d)", outcome.Iterations, len(h.order))
	}
	if h.llm.Calls() != 3 {
		t.Errorf("expected 3 model calls, got %d", h.llm.Calls())
	}
	if !strings.Contains(outcome.Answer, "2 tool rounds") {
		t.Errorf("unexpected exhausted answer %q", outcome.Answer)
	}
	if !strings.Contains(h.out.String(), "warning:") {
		t.Errorf("expected a warning, got %q", h.out.String())
	}

	// Every tool call in history has a matching result
	history := h.agent.History()
	pending := map[string]int{}
	for _, m := range history {
		for _, tc := range m.ToolCalls {
			pending[tc.ID]++
		}
		for _, tr := range m.ToolResults {
			pending[tr.CallID]--
		}
	}
	if pending["loop"] != 0 {
		t.Errorf("unbalanced tool calls in history: %v", pending)
	}
	if last := history[len(history)-1]; last.Role != llm.RoleAssistant {
		t.Errorf("history should end with the answer, got %s", last.Role)
	}
}

func TestRun_ModelErrorRollsBack(t *testing.T) {
	h := newHarness(t, 0, answer("first"))
	if _, err := h.agent.Run(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}

	h.llm.ChatFunc = func(context.Context, []llm.Message, []llm.ToolDefinition, string) (*llm.Response, error) {
		return nil, apperr.LLMUnavailable(errors.New("connection refused"))
	}
	_, err := h.agent.Run(context.Background(), "two")
	if apperr.GetCategory(err) != apperr.CategoryLLM {
		t.Fatalf("expected llm error, got %v", err)
	}
	if n := len(h.agent.History()); n != 2 {
		t.Errorf("failed request should leave history at 2 messages, got %d", n)
	}
	if h.agent.State() != StateAwaitingUserInput {
		t.Errorf("expected AwaitingUserInput after failure, got %s", h.agent.State())
	}
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.agent.Run(ctx, "anything"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(h.agent.History()) != 0 {
		t.Error("cancelled request should not stay in history")
	}
}

func TestRun_HistoryPersistsUntilReset(t *testing.T) {
	h := newHarness(t, 0, answer("a"), answer("b"))
	ctx := context.Background()

	h.agent.Run(ctx, "one")
	h.agent.Run(ctx, "two")
	call, _ := h.llm.LastCall()
	if len(call.Messages) != 3 {
		t.Errorf("second request should see prior turns, got %d messages", len(call.Messages))
	}

	h.agent.Reset()
	if len(h.agent.History()) != 0 {
		t.Error("Reset should clear history")
	}
}

func TestBuildSystemPrompt_ProjectInstructions(t *testing.T) {
	dir := t.TempDir()
	if got := LoadProjectInstructions(dir); got != "" {
		t.Errorf("expected no instructions, got %q", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("Use tabs."), 0644); err != nil {
		t.Fatal(err)
	}
	instructions := LoadProjectInstructions(dir)
	if instructions != "Use tabs." {
		t.Fatalf("unexpected instructions %q", instructions)
	}
	prompt := buildSystemPrompt(instructions)
	if !strings.HasSuffix(prompt, "## Project Instructions\nUse tabs.") {
		t.Errorf("instructions not appended: %q", prompt[len(prompt)-60:])
	}
	if buildSystemPrompt("  ") != systemPrompt {
		t.Error("blank instructions should leave the prompt unchanged")
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateAwaitingUserInput, StatePromptSent, true},
		{StatePromptSent, StateAwaitingModel, true},
		{StateAwaitingModel, StateExecutingTools, true},
		{StateExecutingTools, StateAwaitingModel, true},
		{StateAwaitingModel, StateFinalAnswer, true},
		{StateExecutingTools, StateAwaitingUserInput, true},
		{StatePromptSent, StateExecutingTools, false},
		{StateExecutingTools, StateFinalAnswer, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if State(99).String() != "Unknown" {
		t.Error("unexpected name for invalid state")
	}
}

func TestJSONOutput(t *testing.T) {
	h := newHarness(t, 0,
		toolCalls(llm.ToolCall{ID: "c1", Name: "first"}),
		answer("ok"),
	)
	out := NewJSONOutput("do it")
	h.agent.output = out

	outcome, err := h.agent.Run(context.Background(), "do it")
	var buf bytes.Buffer
	if err := out.Emit(&buf, outcome, err); err != nil {
		t.Fatal(err)
	}

	var report JSONReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if report.Answer != "ok" || report.Iterations != 1 || len(report.ToolCalls) != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.ToolCalls[0].Name != "first" || report.ToolCalls[0].IsError {
		t.Errorf("unexpected tool call %+v", report.ToolCalls[0])
	}
}

func TestInteractive(t *testing.T) {
	h := newHarness(t, 0, answer("**bold** answer"))
	var console bytes.Buffer
	out := ui.NewOutputHandlerTo(&console, &console)
	h.agent.console = out
	h.agent.output = NewCLIOutput(out, true)
	h.agent.input = ui.NewInputHandlerFrom(strings.NewReader("\n/tools\nexplain\n/reset\n/bogus\nquit\nnever read\n"), &console)

	if err := h.agent.Interactive(context.Background()); err != nil {
		t.Fatalf("Interactive: %v", err)
	}

	text := console.String()
	for _, want := range []string{"change_directory", "bold", "Conversation cleared", "unknown command /bogus", "Goodbye!"} {
		if !strings.Contains(text, want) {
			t.Errorf("console output missing %q:\n%s", want, text)
		}
	}
	if h.llm.Calls() != 1 {
		t.Errorf("expected exactly one model call, got %d", h.llm.Calls())
	}
	if len(h.agent.History()) != 0 {
		t.Error("/reset should have cleared the conversation")
	}
}

func TestInteractive_EOFRunsLastLine(t *testing.T) {
	h := newHarness(t, 0, answer("fine"))
	var console bytes.Buffer
	h.agent.console = ui.NewOutputHandlerTo(&console, &console)
	h.agent.input = ui.NewInputHandlerFrom(strings.NewReader("last task"), &console)

	if err := h.agent.Interactive(context.Background()); err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	if h.llm.Calls() != 1 {
		t.Errorf("final line without newline should still run, calls=%d", h.llm.Calls())
	}
}

func TestInteractive_RequiresConsole(t *testing.T) {
	h := newHarness(t, 0)
	if err := h.agent.Interactive(context.Background()); err == nil {
		t.Fatal("expected error without Input and Console")
	}
}
