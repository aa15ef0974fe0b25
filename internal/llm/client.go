// Package llm talks to chat models that support tool calling.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleTool carries the results of every tool call of the preceding
	// assistant turn.
	RoleTool = "tool"
)

// Message represents a conversation message
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall represents a tool call from the LLM
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Usage reports token counts for one request.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response represents an LLM response
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	Thinking   string
	StopReason string
	Usage      Usage
}

// ToolDefinition defines a tool for the LLM
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// LLMClient is the interface for LLM clients
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error)
	SetModel(model string)
	GetModel() string
	Close() error
}

// New builds the client for cfg.Provider, wrapped with rate limiting when
// enabled and always with retries and a circuit breaker. onWait, when not
// nil, is called instead of sleeping whenever the rate limiter waits.
func New(cfg *config.Config, log *logging.Logger, onWait WaitCallback) (LLMClient, error) {
	var inner LLMClient
	switch cfg.Provider {
	case config.ProviderOllama:
		inner = NewOllamaClient(cfg, log)
	case config.ProviderAnthropic:
		inner = NewAnthropicClient(cfg, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.RateLimit.EnableRateLimiting {
		limited := NewRateLimitedClient(inner, cfg.RateLimit, log)
		if onWait != nil {
			limited.SetWaitCallback(onWait)
		}
		inner = limited
	}
	return NewResilientClient(inner, cfg.RateLimit, log), nil
}

// parseToolArguments parses JSON arguments (can be object or string) to map
func parseToolArguments(args json.RawMessage) (map[string]any, error) {
	if len(args) == 0 || string(args) == "{}" || string(args) == "null" {
		return map[string]any{}, nil
	}

	var result map[string]any
	if err := json.Unmarshal(args, &result); err == nil {
		return result, nil
	}

	// OpenAI-style servers send the object encoded as a string
	var argsStr string
	if err := json.Unmarshal(args, &argsStr); err == nil {
		if argsStr == "" || argsStr == "{}" {
			return map[string]any{}, nil
		}
		if err := json.Unmarshal([]byte(argsStr), &result); err != nil {
			return nil, fmt.Errorf("failed to parse arguments string: %w", err)
		}
		return result, nil
	}

	return nil, fmt.Errorf("failed to parse arguments: %s", string(args))
}

// logRequest records the start of a model request and returns its id.
func logRequest(log *logging.Logger, model string, messages, tools int) string {
	requestID := log.NewRequestID()
	log.Debug("sending LLM request", logging.Model(model), logging.Count(messages), logging.F("tools", tools))
	log.Event(logging.EventLLMRequest,
		logging.RequestID(requestID),
		logging.Model(model),
		logging.F("messages", messages),
		logging.F("tools", tools),
	)
	return requestID
}

// logResponse records the outcome of a model request.
func logResponse(log *logging.Logger, requestID string, resp *Response, err error, fields ...logging.Field) {
	defer log.ClearRequestID()
	if err != nil {
		log.Metrics().RecordLLMRequest(0, 0, err)
		log.Event(logging.EventLLMError, append(fields, logging.RequestID(requestID), logging.Error(err))...)
		return
	}
	log.Metrics().RecordLLMRequest(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), nil)
	log.Event(logging.EventLLMResponse, append(fields,
		logging.RequestID(requestID),
		logging.InputTokens(int(resp.Usage.InputTokens)),
		logging.OutputTokens(int(resp.Usage.OutputTokens)),
		logging.F("tool_calls", len(resp.ToolCalls)),
		logging.F("stop_reason", resp.StopReason),
	)...)
}
