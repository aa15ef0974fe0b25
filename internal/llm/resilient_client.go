package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

var errCircuitOpen = errors.New("circuit breaker open: too many consecutive provider failures")

// ResilientClient wraps an LLMClient with retry logic and circuit breaking.
type ResilientClient struct {
	inner      LLMClient
	cb         *CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logging.Logger
}

// NewResilientClient wraps the given client with resilience features.
func NewResilientClient(inner LLMClient, cfg config.RateLimitConfig, log *logging.Logger) *ResilientClient {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 1 * time.Second
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	log = log.WithPrefix("llm")
	cb := NewCircuitBreaker(5, 30*time.Second)
	cb.OnStateChange(func(from, to CircuitState) {
		log.Warn("circuit breaker state change", logging.From(from.String()), logging.To(to.String()))
	})

	return &ResilientClient{
		inner:      inner,
		cb:         cb,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		log:        log,
	}
}

// Chat sends a request with retry and circuit breaker protection. Only
// retryable errors count against the breaker; a rejected request means
// the provider is up.
func (rc *ResilientClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if !rc.cb.Allow() {
			return nil, apperr.LLMUnavailable(errCircuitOpen)
		}

		resp, err := rc.inner.Chat(ctx, messages, tools, systemPrompt)
		if err == nil {
			rc.cb.RecordSuccess()
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			rc.cb.RecordSuccess()
			return nil, err
		}
		if !apperr.IsRetryable(err) {
			rc.cb.RecordSuccess()
			return nil, err
		}
		rc.cb.RecordFailure()

		if attempt == rc.maxRetries {
			break
		}

		delay := rc.backoff(attempt)
		rc.log.Debug("retrying LLM request", logging.F("attempt", attempt+1), logging.Duration(delay), logging.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// SetModel delegates to the inner client.
func (rc *ResilientClient) SetModel(model string) {
	rc.inner.SetModel(model)
}

// GetModel delegates to the inner client.
func (rc *ResilientClient) GetModel() string {
	return rc.inner.GetModel()
}

// Close delegates to the inner client.
func (rc *ResilientClient) Close() error {
	return rc.inner.Close()
}

// backoff calculates the delay for the given attempt using exponential backoff with jitter.
func (rc *ResilientClient) backoff(attempt int) time.Duration {
	delay := rc.baseDelay * (1 << uint(attempt))
	if delay > rc.maxDelay {
		delay = rc.maxDelay
	}
	// 50-100% of the computed delay
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half)
}
