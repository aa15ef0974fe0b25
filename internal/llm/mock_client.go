package llm

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MockLLMClient implements LLMClient for testing. Responses are served
// from Script in order; ChatFunc, when set, takes precedence.
type MockLLMClient struct {
	ChatFunc func(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error)
	Script   []*Response

	model string
	mu    sync.Mutex
	next  int

	// Call recording
	ChatCalls []ChatCall
}

// ChatCall records the arguments of a Chat invocation. Messages is a
// copy taken at call time.
type ChatCall struct {
	Messages     []Message
	Tools        []ToolDefinition
	SystemPrompt string
}

// NewMockLLMClient creates a mock client that replies with script.
func NewMockLLMClient(script ...*Response) *MockLLMClient {
	return &MockLLMClient{
		model:  "mock-model",
		Script: script,
	}
}

// Chat calls the injected ChatFunc, the next scripted response, or
// returns a default response when the script has run out.
func (m *MockLLMClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, ChatCall{
		Messages:     slices.Clone(messages),
		Tools:        tools,
		SystemPrompt: systemPrompt,
	})
	var scripted *Response
	if m.ChatFunc == nil && m.next < len(m.Script) {
		scripted = m.Script[m.next]
		m.next++
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages, tools, systemPrompt)
	}
	if scripted != nil {
		return scripted, nil
	}
	return &Response{
		Content:    "mock response",
		StopReason: "end_turn",
	}, nil
}

// Calls returns the number of Chat invocations so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}

// LastCall returns the most recent Chat invocation.
func (m *MockLLMClient) LastCall() (ChatCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ChatCalls) == 0 {
		return ChatCall{}, fmt.Errorf("no calls recorded")
	}
	return m.ChatCalls[len(m.ChatCalls)-1], nil
}

// SetModel sets the model name.
func (m *MockLLMClient) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// GetModel returns the current model name.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Close is a no-op for the mock client.
func (m *MockLLMClient) Close() error {
	return nil
}
