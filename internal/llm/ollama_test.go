package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// newTestClient creates an OllamaClient pointing at the given base URL.
// If baseURL is empty it defaults to a bogus address (useful when the
// test does not need a real server).
func newTestClient(baseURL string) *OllamaClient {
	cfg := config.DefaultConfig()
	cfg.Ollama.BaseURL = "http://127.0.0.1:1"
	if baseURL != "" {
		cfg.Ollama.BaseURL = baseURL
	}
	return NewOllamaClient(cfg, nil)
}

// ---------------------------------------------------------------------------
// buildOllamaMessages
// ---------------------------------------------------------------------------

func TestBuildMessages_SystemPrompt(t *testing.T) {
	msgs := buildOllamaMessages(nil, "You are helpful.")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "You are helpful." {
		t.Errorf("unexpected system message %+v", msgs[0])
	}
}

func TestBuildMessages_NoSystemPrompt(t *testing.T) {
	msgs := buildOllamaMessages([]Message{{Role: RoleUser, Content: "hi"}}, "")
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestBuildMessages_ToolResultsExpand(t *testing.T) {
	input := []Message{
		{Role: RoleUser, Content: "look around"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_0", Name: "list_directory", Input: map[string]any{"path": "."}},
			{ID: "call_1", Name: "read_file", Input: map[string]any{"file_path": "a.py"}},
		}},
		{Role: RoleTool, ToolResults: []ToolResult{
			{CallID: "call_0", Name: "list_directory", Content: "a.py"},
			{CallID: "call_1", Name: "read_file", Content: "print(1)"},
		}},
	}

	msgs := buildOllamaMessages(input, "")
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}

	asst := msgs[1]
	if len(asst.ToolCalls) != 2 || asst.ToolCalls[1].Function.Name != "read_file" {
		t.Fatalf("unexpected assistant tool calls %+v", asst.ToolCalls)
	}
	var args map[string]any
	if err := json.Unmarshal(asst.ToolCalls[1].Function.Arguments, &args); err != nil {
		t.Fatalf("arguments should be a JSON object: %v", err)
	}
	if args["file_path"] != "a.py" {
		t.Errorf("unexpected arguments %v", args)
	}

	for i, want := range []string{"list_directory", "read_file"} {
		m := msgs[2+i]
		if m.Role != "tool" || m.ToolName != want {
			t.Errorf("message %d: got role=%s tool=%s, want tool %s", 2+i, m.Role, m.ToolName, want)
		}
	}
	if msgs[3].Content != "print(1)" {
		t.Errorf("results out of order: %q", msgs[3].Content)
	}
}

func TestBuildTools(t *testing.T) {
	if buildOllamaTools(nil) != nil {
		t.Error("no tools should produce nil")
	}

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"file_path": map[string]any{"type": "string"}},
		"required":   []string{"file_path"},
	}
	out := buildOllamaTools([]ToolDefinition{{Name: "read_file", Description: "Read a file", InputSchema: schema}})
	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	if out[0].Type != "function" || out[0].Function.Name != "read_file" || out[0].Function.Description != "Read a file" {
		t.Errorf("unexpected tool %+v", out[0])
	}
	if out[0].Function.Parameters["type"] != "object" {
		t.Errorf("schema not passed through: %v", out[0].Function.Parameters)
	}
}

// ---------------------------------------------------------------------------
// parseResponse
// ---------------------------------------------------------------------------

func TestParseResponse_ContentOnly(t *testing.T) {
	c := newTestClient("")
	resp := c.parseResponse(&OllamaChatResponse{
		Message:         OllamaMessage{Role: "assistant", Content: "done"},
		DoneReason:      "stop",
		PromptEvalCount: 12,
		EvalCount:       3,
	})
	if resp.Content != "done" || len(resp.ToolCalls) != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestParseResponse_ToolCallsKeepOrderAndGetIDs(t *testing.T) {
	c := newTestClient("")
	var first, second OllamaToolCall
	first.Function.Name = "list_directory"
	first.Function.Arguments = json.RawMessage(`{"path":"src"}`)
	second.ID = "given"
	second.Function.Name = "read_file"
	second.Function.Arguments = json.RawMessage(`"{\"file_path\":\"a.py\"}"`)

	resp := c.parseResponse(&OllamaChatResponse{
		Message: OllamaMessage{Role: "assistant", ToolCalls: []OllamaToolCall{first, second}},
	})
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "call_0" || resp.ToolCalls[0].Input["path"] != "src" {
		t.Errorf("unexpected first call %+v", resp.ToolCalls[0])
	}
	if resp.ToolCalls[1].ID != "given" || resp.ToolCalls[1].Input["file_path"] != "a.py" {
		t.Errorf("unexpected second call %+v", resp.ToolCalls[1])
	}
}

func TestParseResponse_InvalidToolArgs(t *testing.T) {
	c := newTestClient("")
	var tc OllamaToolCall
	tc.Function.Name = "read_file"
	tc.Function.Arguments = json.RawMessage(`[1,2]`)

	resp := c.parseResponse(&OllamaChatResponse{Message: OllamaMessage{ToolCalls: []OllamaToolCall{tc}}})
	if len(resp.ToolCalls) != 1 || len(resp.ToolCalls[0].Input) != 0 {
		t.Errorf("invalid arguments should become an empty input, got %+v", resp.ToolCalls)
	}
}

// ---------------------------------------------------------------------------
// parseToolArguments
// ---------------------------------------------------------------------------

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    map[string]any
		wantErr bool
	}{
		{"object", `{"path":"."}`, map[string]any{"path": "."}, false},
		{"string encoded", `"{\"path\":\".\"}"`, map[string]any{"path": "."}, false},
		{"empty", ``, map[string]any{}, false},
		{"null", `null`, map[string]any{}, false},
		{"empty string", `""`, map[string]any{}, false},
		{"empty object string", `"{}"`, map[string]any{}, false},
		{"invalid", `{not json`, nil, true},
		{"invalid inside string", `"{nope"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToolArguments(json.RawMessage(tt.args))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Chat (using httptest)
// ---------------------------------------------------------------------------

func TestChat_RoundTrip(t *testing.T) {
	var got OllamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{
			"model": "qwen3:8b",
			"message": {"role": "assistant", "content": "", "tool_calls": [
				{"function": {"name": "read_file", "arguments": {"file_path": "main.go"}}}
			]},
			"done": true,
			"done_reason": "stop",
			"prompt_eval_count": 40,
			"eval_count": 7
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetModel("qwen3:8b")
	resp, err := c.Chat(context.Background(),
		[]Message{{Role: RoleUser, Content: "show main.go"}},
		[]ToolDefinition{{Name: "read_file", InputSchema: map[string]any{"type": "object"}}},
		"system")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got.Stream {
		t.Error("requests must not stream")
	}
	if got.Model != "qwen3:8b" || len(got.Messages) != 2 || len(got.Tools) != 1 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Options == nil || got.Options.NumCtx != config.DefaultConfig().Ollama.NumCtx {
		t.Errorf("num_ctx not sent: %+v", got.Options)
	}

	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "read_file" || resp.ToolCalls[0].Input["file_path"] != "main.go" {
		t.Errorf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      string
		retryable bool
	}{
		{"model missing", http.StatusNotFound, `{"error":"model not found"}`, apperr.CodeLLMModelNotFound, false},
		{"overloaded", http.StatusServiceUnavailable, `busy`, apperr.CodeLLMUnavailable, true},
		{"rate limited", http.StatusTooManyRequests, `slow down`, apperr.CodeLLMRateLimited, true},
		{"bad request", http.StatusBadRequest, `bad`, apperr.CodeLLMRequestFailed, false},
		{"error in body", http.StatusOK, `{"error":"model \"x\" not found, try pulling it first"}`, apperr.CodeLLMModelNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, "")
			if !apperr.HasCode(err, tt.code) {
				t.Fatalf("expected code %s, got %v", tt.code, err)
			}
			if apperr.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", apperr.IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestChat_ConnectionRefused(t *testing.T) {
	_, err := newTestClient("").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, "")
	if !apperr.HasCode(err, apperr.CodeLLMUnavailable) {
		t.Fatalf("expected llm_unavailable, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// CheckHealth (using httptest)
// ---------------------------------------------------------------------------

func TestCheckHealth_HealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"version":"0.6.0"}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).CheckHealth(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCheckHealth_UnhealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).CheckHealth(context.Background()); err == nil {
		t.Fatal("expected error for unhealthy server")
	}
}

func TestCheckHealth_ConnectionError(t *testing.T) {
	if err := newTestClient("").CheckHealth(context.Background()); err == nil {
		t.Fatal("expected error for connection refused")
	}
}

func TestSetModelGetModel(t *testing.T) {
	c := newTestClient("")
	c.SetModel("llama3.2:3b")
	if got := c.GetModel(); got != "llama3.2:3b" {
		t.Errorf("expected llama3.2:3b, got %q", got)
	}
	if err := c.Close(); err != nil {
		t.Errorf("expected no error from Close, got %v", err)
	}
}
