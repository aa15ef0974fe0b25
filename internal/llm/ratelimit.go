package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"golang.org/x/time/rate"
)

// TokenEstimator estimates token counts for rate limiting
type TokenEstimator struct{}

// NewTokenEstimator creates a new token estimator
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// EstimateTokens estimates the number of tokens in a string
// Uses a rough approximation: chars/4 + 20% buffer
func (e *TokenEstimator) EstimateTokens(text string) int {
	baseEstimate := len(text) / 4
	return int(float64(baseEstimate) * 1.2)
}

// EstimateMessages estimates tokens for a slice of messages, counting
// tool results as part of the message that carries them.
func (e *TokenEstimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		// ~4 tokens of structure per message
		total += 4
		total += e.EstimateTokens(msg.Content)
		for _, r := range msg.ToolResults {
			total += 4 + e.EstimateTokens(r.Content)
		}
		total += len(msg.ToolCalls) * 20
	}
	return total
}

// WaitInfo contains information about a rate limit wait
type WaitInfo struct {
	Duration    time.Duration // How long to wait
	Reason      string        // "token bucket cooldown" or "rate limited by provider"
	Attempt     int           // Current attempt number (1-based, 0 if not a retry)
	MaxAttempts int           // Maximum number of attempts (0 if not a retry)
}

// WaitCallback is called when the client needs to wait due to rate limiting.
// It should block for the specified duration or until context is cancelled.
// If nil, the default timer behavior is used.
type WaitCallback func(ctx context.Context, info WaitInfo) error

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	onWait  WaitCallback
	log     *logging.Logger
}

// NewTokenBucket creates a new token bucket rate limiter.
// tokensPerMinute is converted to tokens per second for the limiter.
func NewTokenBucket(tokensPerMinute int, log *logging.Logger) *TokenBucket {
	if tokensPerMinute <= 0 {
		tokensPerMinute = 30000
	}
	tokensPerSecond := float64(tokensPerMinute) / 60.0
	// Ten seconds worth of burst
	burstSize := max(tokensPerMinute/6, 1000)

	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burstSize),
		log:     log,
	}
}

// SetWaitCallback sets a callback to be invoked when waiting for tokens
func (tb *TokenBucket) SetWaitCallback(cb WaitCallback) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.onWait = cb
}

// Wait blocks until the specified number of tokens are available.
// Requests larger than the burst are clamped to it.
func (tb *TokenBucket) Wait(ctx context.Context, tokens int) error {
	tb.mu.Lock()
	onWait := tb.onWait
	tb.mu.Unlock()

	if burst := tb.limiter.Burst(); tokens > burst {
		tb.log.Debug("estimate exceeds burst, clamping", logging.F("tokens", tokens), logging.F("burst", burst))
		tokens = burst
	}

	reservation := tb.limiter.ReserveN(time.Now(), tokens)
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}
	tb.log.Debug("waiting for token bucket", logging.Duration(delay), logging.F("tokens", tokens))

	if onWait != nil {
		if err := onWait(ctx, WaitInfo{Duration: delay, Reason: "token bucket cooldown"}); err != nil {
			reservation.Cancel()
			return err
		}
		return nil
	}

	if err := sleep(ctx, delay); err != nil {
		reservation.Cancel()
		return err
	}
	return nil
}

// RateLimitedClient throttles requests by estimated token usage and
// retries when the provider reports a rate limit.
type RateLimitedClient struct {
	LLMClient
	tokenBucket *TokenBucket
	estimator   *TokenEstimator
	cfg         config.RateLimitConfig
	onWait      WaitCallback
	log         *logging.Logger
}

// NewRateLimitedClient creates a new rate-limited client wrapper
func NewRateLimitedClient(inner LLMClient, cfg config.RateLimitConfig, log *logging.Logger) *RateLimitedClient {
	log = log.WithPrefix("ratelimit")
	return &RateLimitedClient{
		LLMClient:   inner,
		tokenBucket: NewTokenBucket(cfg.TokensPerMinute, log),
		estimator:   NewTokenEstimator(),
		cfg:         cfg,
		log:         log,
	}
}

// SetWaitCallback sets a callback to be invoked when waiting due to rate limiting.
// The callback is called both for token bucket waits and provider retry waits.
func (c *RateLimitedClient) SetWaitCallback(cb WaitCallback) {
	c.onWait = cb
	c.tokenBucket.SetWaitCallback(cb)
}

// Chat sends a message with rate limiting and returns the response
func (c *RateLimitedClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error) {
	estimatedTokens := c.estimator.EstimateMessages(messages)
	estimatedTokens += c.estimator.EstimateTokens(systemPrompt)
	// ~100 tokens per tool definition
	estimatedTokens += len(tools) * 100

	if err := c.tokenBucket.Wait(ctx, estimatedTokens); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			c.log.Debug("retrying after rate limit", logging.F("attempt", attempt), logging.F("max", c.cfg.MaxRetries), logging.Duration(delay))

			info := WaitInfo{
				Duration:    delay,
				Reason:      "rate limited by provider",
				Attempt:     attempt,
				MaxAttempts: c.cfg.MaxRetries,
			}
			var err error
			if c.onWait != nil {
				err = c.onWait(ctx, info)
			} else {
				err = sleep(ctx, delay)
			}
			if err != nil {
				return nil, err
			}
		}

		resp, err := c.LLMClient.Chat(ctx, messages, tools, systemPrompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRateLimitError(err) {
			return nil, err
		}
		c.log.Warn("rate limit hit", logging.F("attempt", attempt+1), logging.F("max", c.cfg.MaxRetries+1), logging.Error(err))
	}

	return nil, lastErr
}

// calculateBackoff calculates the backoff delay for a retry attempt
// Uses exponential backoff with jitter
func (c *RateLimitedClient) calculateBackoff(attempt int) time.Duration {
	return backoff(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
}

// backoff returns base * 2^(attempt-1) plus up to 25% jitter, capped at maxDelay.
func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt-1))
	d += d * 0.25 * rand.Float64()
	if maxDelay > 0 && d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isRateLimitError reports whether err is a provider rate limit. Errors
// from other sources are matched by their text.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if apperr.HasCode(err, apperr.CodeLLMRateLimited) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}
