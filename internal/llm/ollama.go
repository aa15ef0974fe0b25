package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

// OllamaClient implements LLMClient for Ollama's HTTP API
type OllamaClient struct {
	baseURL     string
	model       string
	modelMu     sync.RWMutex // Protects model field from concurrent access
	temperature float64
	maxTokens   int
	numCtx      int
	httpClient  *http.Client
	log         *logging.Logger
}

// OllamaMessage represents a message in Ollama's format
type OllamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []OllamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

// OllamaToolCall represents a tool call in Ollama's format (OpenAI-compatible)
type OllamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"` // Can be string or object
	} `json:"function"`
}

// OllamaTool represents a tool definition for Ollama (OpenAI-compatible)
type OllamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

// OllamaChatRequest represents a chat request to Ollama
type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Tools    []OllamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

// OllamaOptions represents model options
type OllamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// OllamaChatResponse represents a chat response from Ollama
type OllamaChatResponse struct {
	Model      string        `json:"model"`
	Message    OllamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`
	Error      string        `json:"error,omitempty"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg *config.Config, log *logging.Logger) *OllamaClient {
	baseURL := strings.TrimRight(cfg.Ollama.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Ollama.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &OllamaClient{
		baseURL:     baseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		numCtx:      cfg.Ollama.NumCtx,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log.WithPrefix("ollama"),
	}
}

// SetModel changes the current model (thread-safe)
func (c *OllamaClient) SetModel(model string) {
	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	c.model = model
}

// GetModel returns the current model (thread-safe)
func (c *OllamaClient) GetModel() string {
	c.modelMu.RLock()
	defer c.modelMu.RUnlock()
	return c.model
}

// Close releases idle connections.
func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// CheckHealth verifies Ollama is running
func (c *OllamaClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.LLMUnavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apperr.LLMUnavailable(fmt.Errorf("version endpoint returned %d", resp.StatusCode))
	}
	return nil
}

// Chat sends a message and returns the response
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error) {
	model := c.GetModel()
	requestID := logRequest(c.log, model, len(messages), len(tools))
	start := time.Now()

	resp, err := c.chat(ctx, model, messages, tools, systemPrompt)
	logResponse(c.log, requestID, resp, err, logging.DurationSince(start))
	return resp, err
}

func (c *OllamaClient) chat(ctx context.Context, model string, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error) {
	request := OllamaChatRequest{
		Model:    model,
		Messages: buildOllamaMessages(messages, systemPrompt),
		Tools:    buildOllamaTools(tools),
		Stream:   false,
		Options: &OllamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
			NumCtx:      c.numCtx,
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.LLMUnavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.LLMRequestFailed(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(model, resp.StatusCode, respBody)
	}

	var ollamaResp OllamaChatResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, apperr.LLMRequestFailed(fmt.Errorf("failed to parse response: %w", err))
	}
	if ollamaResp.Error != "" {
		if strings.Contains(ollamaResp.Error, "not found") {
			return nil, apperr.LLMModelNotFound(model)
		}
		return nil, apperr.LLMRequestFailed(fmt.Errorf("ollama error: %s", ollamaResp.Error))
	}

	return c.parseResponse(&ollamaResp), nil
}

func (c *OllamaClient) statusError(model string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch {
	case status == http.StatusNotFound:
		return apperr.LLMModelNotFound(model)
	case status == http.StatusTooManyRequests:
		return apperr.LLMRateLimited(fmt.Errorf("ollama returned status %d: %s", status, msg))
	case status >= 500:
		return apperr.LLMUnavailable(fmt.Errorf("ollama returned status %d: %s", status, msg))
	default:
		e := apperr.LLMRequestFailed(fmt.Errorf("ollama returned status %d: %s", status, msg))
		e.Retryable = false
		return e
	}
}

// buildOllamaMessages converts internal messages to Ollama format. A
// batched tool message expands to one "tool" message per result.
func buildOllamaMessages(messages []Message, systemPrompt string) []OllamaMessage {
	var out []OllamaMessage
	if systemPrompt != "" {
		out = append(out, OllamaMessage{Role: "system", Content: systemPrompt})
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			for _, r := range msg.ToolResults {
				out = append(out, OllamaMessage{Role: "tool", Content: r.Content, ToolName: r.Name})
			}
		case RoleAssistant:
			om := OllamaMessage{Role: "assistant", Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				var call OllamaToolCall
				call.ID = tc.ID
				call.Type = "function"
				call.Function.Name = tc.Name
				args, _ := json.Marshal(tc.Input)
				call.Function.Arguments = args
				om.ToolCalls = append(om.ToolCalls, call)
			}
			out = append(out, om)
		default:
			out = append(out, OllamaMessage{Role: msg.Role, Content: msg.Content})
		}
	}
	return out
}

// buildOllamaTools converts internal tool definitions to Ollama format
func buildOllamaTools(tools []ToolDefinition) []OllamaTool {
	if len(tools) == 0 {
		return nil
	}

	ollamaTools := make([]OllamaTool, len(tools))
	for i, tool := range tools {
		ollamaTools[i].Type = "function"
		ollamaTools[i].Function.Name = tool.Name
		ollamaTools[i].Function.Description = tool.Description
		ollamaTools[i].Function.Parameters = tool.InputSchema
	}
	return ollamaTools
}

// parseResponse converts Ollama response to internal format. Ollama does
// not always assign call ids, so missing ones are synthesized.
func (c *OllamaClient) parseResponse(resp *OllamaChatResponse) *Response {
	result := &Response{
		Content:    resp.Message.Content,
		StopReason: resp.DoneReason,
		Usage: Usage{
			InputTokens:  int64(resp.PromptEvalCount),
			OutputTokens: int64(resp.EvalCount),
		},
	}

	for i, tc := range resp.Message.ToolCalls {
		input, err := parseToolArguments(tc.Function.Arguments)
		if err != nil {
			c.log.Warn("failed to parse tool arguments", logging.ToolName(tc.Function.Name), logging.Error(err))
			input = make(map[string]any)
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:    id,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return result
}
