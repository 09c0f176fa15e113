package scorer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

// RetryWrapper wraps an OpenAI client with retry logic
type RetryWrapper struct {
	client  OpenAIClient
	config  *RetryConfig
	metrics *MetricsRecorder
}

// NewRetryWrapper creates a new retry wrapper around an OpenAI client
func NewRetryWrapper(client OpenAIClient, config *RetryConfig, metrics *MetricsRecorder) *RetryWrapper {
	if config == nil {
		config = DefaultRetryConfig()
	}

	return &RetryWrapper{
		client:  client,
		config:  config,
		metrics: metrics,
	}
}

// CreateChatCompletion executes the API call with retry logic
func (w *RetryWrapper) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	var attempts int

	err := retry.Do(ctx, w.getBackoffStrategy(), func(ctx context.Context) error {
		attempts++

		r, err := w.client.CreateChatCompletion(ctx, req)
		if err == nil {
			resp = r
			return nil
		}

		if !IsRetryableError(err) {
			slog.Debug("Non-retryable error, giving up",
				"error", err,
				"attempts", attempts)
			return err
		}

		if attempts < w.config.MaxAttempts {
			slog.Debug("Retrying request after delay",
				"attempt", attempts,
				"error", err)
			w.metrics.RecordRetry(classifyError(err))
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		if attempts >= w.config.MaxAttempts && IsRetryableError(err) {
			slog.Warn("Max retry attempts reached",
				"attempts", attempts,
				"error", err)
		}
		return openai.ChatCompletionResponse{}, err
	}

	if attempts > 1 {
		slog.Info("Request succeeded after retry",
			"attempts", attempts)
	}
	return resp, nil
}

// getBackoffStrategy returns the appropriate backoff strategy.
// MaxAttempts counts the first call, so MaxAttempts-1 retries follow it.
func (w *RetryWrapper) getBackoffStrategy() retry.Backoff {
	retries := uint64(0)
	if w.config.MaxAttempts > 1 {
		retries = uint64(w.config.MaxAttempts - 1)
	}
	jitter := w.config.InitialDelay / 10

	var base retry.Backoff
	switch w.config.Strategy {
	case RetryStrategyConstant:
		base = retry.NewConstant(w.config.InitialDelay)
	case RetryStrategyFibonacci:
		base = retry.NewFibonacci(w.config.InitialDelay)
	case RetryStrategyExponential:
		fallthrough
	default:
		base = retry.NewExponential(w.config.InitialDelay)
	}

	// Add jitter to prevent thundering herd
	if jitter > 0 {
		base = retry.WithJitter(jitter, base)
	}
	return retry.WithMaxRetries(retries, retry.WithCappedDuration(w.config.MaxDelay, base))
}

// IsRetryableError determines if an error should trigger a retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for OpenAI API errors
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429: // Rate limit - definitely retry
			return true
		case 500, 502, 503, 504: // Server errors - retry
			return true
		case 400, 401, 403, 404: // Client errors - don't retry
			return false
		default:
			return apiErr.HTTPStatusCode >= 500
		}
	}

	// Timeout errors are retryable
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Cancelled context is not retryable
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Network errors might be retryable
	return true
}
