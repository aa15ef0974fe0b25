package errors

import "fmt"

// Error codes that callers branch on.
const (
	CodeLLMUnavailable       = "llm_unavailable"
	CodeLLMModelNotFound     = "llm_model_not_found"
	CodeLLMRateLimited       = "llm_rate_limited"
	CodeLLMRequestFailed     = "llm_request_failed"
	CodeToolNotFound         = "tool_not_found"
	CodeToolInvalidInput     = "tool_invalid_input"
	CodeToolFailed           = "tool_execution_failed"
	CodeMaxIterations        = "max_iterations_reached"
	CodeDimensionMismatch    = "dimension_mismatch"
	CodeNoResults            = "no_results"
	CodeIndexLocked          = "index_locked"
	CodeEmbeddingUnavailable = "embedding_unavailable"
)

// LLMUnavailable creates an error for when the LLM backend is unreachable.
func LLMUnavailable(cause error) *AppError {
	return &AppError{
		Category:  CategoryLLM,
		Code:      CodeLLMUnavailable,
		Message:   "LLM service is unavailable",
		Retryable: true,
		Cause:     cause,
	}
}

// LLMModelNotFound creates an error for when a requested model does not exist.
func LLMModelNotFound(model string) *AppError {
	return &AppError{
		Category:  CategoryLLM,
		Code:      CodeLLMModelNotFound,
		Message:   fmt.Sprintf("model %q not found - run 'ollama pull %s'", model, model),
		Retryable: false,
	}
}

// LLMRateLimited creates an error for a 429 from the model provider.
func LLMRateLimited(cause error) *AppError {
	return &AppError{
		Category:  CategoryLLM,
		Code:      CodeLLMRateLimited,
		Message:   "LLM rate limit exceeded",
		Retryable: true,
		Cause:     cause,
	}
}

// LLMRequestFailed creates an error for when an LLM request fails.
func LLMRequestFailed(cause error) *AppError {
	return &AppError{
		Category:  CategoryLLM,
		Code:      CodeLLMRequestFailed,
		Message:   "LLM request failed",
		Retryable: true,
		Cause:     cause,
	}
}

// ToolNotFound creates an error for when a requested tool does not exist.
func ToolNotFound(name string) *AppError {
	return &AppError{
		Category: CategoryTool,
		Code:     CodeToolNotFound,
		Message:  fmt.Sprintf("unknown tool %q", name),
	}
}

// ToolInvalidInput creates an error for missing or mistyped arguments.
func ToolInvalidInput(msg string) *AppError {
	return &AppError{
		Category: CategoryTool,
		Code:     CodeToolInvalidInput,
		Message:  msg,
	}
}

// ToolExecutionFailed creates an error for when a tool execution fails.
// Retryability depends on the underlying cause.
func ToolExecutionFailed(name string, cause error) *AppError {
	return &AppError{
		Category:  CategoryTool,
		Code:      CodeToolFailed,
		Message:   fmt.Sprintf("tool %q execution failed", name),
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// MaxIterationsReached describes an agent loop that hit its round cap.
func MaxIterationsReached(iterations int) *AppError {
	return &AppError{
		Category: CategoryAgent,
		Code:     CodeMaxIterations,
		Message:  fmt.Sprintf("agent loop stopped after %d tool rounds", iterations),
	}
}

// ConfigLoadFailed creates an error for when configuration loading fails.
func ConfigLoadFailed(path string, cause error) *AppError {
	return &AppError{
		Category: CategoryConfig,
		Code:     "config_load_failed",
		Message:  fmt.Sprintf("failed to load config from %q", path),
		Cause:    cause,
	}
}

// ConfigInvalid reports a config value that fails validation.
func ConfigInvalid(field, msg string) *AppError {
	return &AppError{
		Category: CategoryConfig,
		Code:     "config_invalid",
		Message:  fmt.Sprintf("invalid %s: %s", field, msg),
	}
}

// DimensionMismatch reports a vector whose length differs from the collection's.
func DimensionMismatch(collection string, have, want int) *AppError {
	return &AppError{
		Category: CategoryIndex,
		Code:     CodeDimensionMismatch,
		Message: fmt.Sprintf("collection %q stores %d-dimensional vectors, got %d; run 'codeagent index --rebuild' to recreate it",
			collection, have, want),
	}
}

// NoResults is returned by queries against an empty collection.
func NoResults(collection string) *AppError {
	return &AppError{
		Category: CategoryIndex,
		Code:     CodeNoResults,
		Message:  fmt.Sprintf("collection %q has no stored vectors", collection),
	}
}

// IndexLocked reports that another process holds the index lock.
func IndexLocked(path string) *AppError {
	return &AppError{
		Category:  CategoryIndex,
		Code:      CodeIndexLocked,
		Message:   fmt.Sprintf("index %s is locked by another process", path),
		Retryable: true,
	}
}

// EmbeddingUnavailable wraps a failure of the embedding model or tokenizer.
func EmbeddingUnavailable(model string, cause error) *AppError {
	return &AppError{
		Category:  CategoryEmbedding,
		Code:      CodeEmbeddingUnavailable,
		Message:   fmt.Sprintf("embedding model %q is unavailable", model),
		Retryable: true,
		Cause:     cause,
	}
}
