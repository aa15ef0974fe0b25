package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

// AnthropicClient wraps the Anthropic SDK
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	modelMu     sync.RWMutex
	maxTokens   int64
	temperature float64
	log         *logging.Logger
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(cfg *config.Config, log *logging.Logger, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{
		option.WithAPIKey(cfg.Anthropic.APIKey),
		option.WithMaxRetries(cfg.Anthropic.MaxRetries),
	}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client:      &client,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		log:         log.WithPrefix("anthropic"),
	}
}

// SetModel changes the current model
func (c *AnthropicClient) SetModel(model string) {
	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	c.model = model
}

// GetModel returns the current model
func (c *AnthropicClient) GetModel() string {
	c.modelMu.RLock()
	defer c.modelMu.RUnlock()
	return c.model
}

// Close is a no-op; the SDK holds no resources.
func (c *AnthropicClient) Close() error {
	return nil
}

// Chat sends a message and returns the response
func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error) {
	model := c.GetModel()
	requestID := logRequest(c.log, model, len(messages), len(tools))
	start := time.Now()

	msg, err := c.client.Messages.New(ctx, c.buildParams(model, messages, tools, systemPrompt))
	if err != nil {
		err = classifyAnthropicError(model, err)
		logResponse(c.log, requestID, nil, err, logging.DurationSince(start))
		return nil, err
	}

	resp := c.parseResponse(msg)
	logResponse(c.log, requestID, resp, nil, logging.DurationSince(start))
	return resp, nil
}

func classifyAnthropicError(model string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apperr.LLMRateLimited(err)
		case apiErr.StatusCode == http.StatusNotFound:
			return apperr.LLMModelNotFound(model)
		case apiErr.StatusCode >= 500:
			return apperr.LLMUnavailable(err)
		default:
			e := apperr.LLMRequestFailed(err)
			e.Retryable = false
			return e
		}
	}
	return apperr.LLMUnavailable(err)
}

func (c *AnthropicClient) buildParams(model string, messages []Message, tools []ToolDefinition, systemPrompt string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   c.maxTokens,
		Messages:    buildAnthropicMessages(messages),
		Temperature: anthropic.Float(c.temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	for _, tool := range tools {
		toolParam := anthropic.ToolUnionParamOfTool(buildInputSchema(tool.InputSchema), tool.Name)
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		params.Tools = append(params.Tools, toolParam)
	}
	return params
}

// buildAnthropicMessages maps the conversation onto content blocks. The
// batched results of a tool round become one user message of
// tool_result blocks.
func buildAnthropicMessages(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
			for _, r := range msg.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(r.CallID, r.Content, r.IsError))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	return out
}

func (c *AnthropicClient) parseResponse(msg *anthropic.Message) *Response {
	resp := &Response{
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += b.Text
		case anthropic.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal(b.Input, &input); err != nil {
				c.log.Warn("failed to parse tool input", logging.ToolName(b.Name), logging.Error(err))
				input = make(map[string]any)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		case anthropic.ThinkingBlock:
			resp.Thinking += b.Thinking
		}
	}

	return resp
}

// buildInputSchema converts a tool's schema map to the SDK's ToolInputSchemaParam
func buildInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	result := anthropic.ToolInputSchemaParam{}
	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = props
	}
	if req, ok := schema["required"]; ok {
		result.ExtraFields = map[string]any{
			"required": req,
		}
	}
	return result
}
