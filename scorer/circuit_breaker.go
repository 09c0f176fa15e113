package scorer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

const breakerName = "openai-judge"

// CircuitBreakerWrapper wraps an OpenAI client with circuit breaker functionality.
// Once open, judge calls fail immediately and documents fall back to the
// neutral effort instead of waiting on a failing provider.
type CircuitBreakerWrapper struct {
	client OpenAIClient
	cb     *gobreaker.CircuitBreaker[openai.ChatCompletionResponse]
}

// NewCircuitBreakerWrapper creates a new circuit breaker wrapper around an OpenAI client
func NewCircuitBreakerWrapper(client OpenAIClient, config *CircuitBreakerConfig, metrics *MetricsRecorder) *CircuitBreakerWrapper {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: config.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			metrics.RecordCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}

			if config.OnStateChange != nil {
				config.OnStateChange(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			// Don't count rate limits and timeouts as circuit breaker failures
			return !ShouldTripCircuit(err)
		},
	}

	return &CircuitBreakerWrapper{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[openai.ChatCompletionResponse](settings),
	}
}

// CreateChatCompletion executes the API call through the circuit breaker
func (w *CircuitBreakerWrapper) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := w.cb.Execute(func() (openai.ChatCompletionResponse, error) {
		return w.client.CreateChatCompletion(ctx, req)
	})

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			slog.Debug("Circuit breaker is open, request rejected",
				"error", err)
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			slog.Debug("Circuit breaker in half-open state, too many requests",
				"error", err)
		default:
			slog.Debug("Request failed through circuit breaker",
				"error", err,
				"should_trip", ShouldTripCircuit(err))
		}
	}

	return resp, err
}

// State returns the current state of the circuit breaker
func (w *CircuitBreakerWrapper) State() gobreaker.State {
	return w.cb.State()
}

// Counts returns the current counts of the circuit breaker
func (w *CircuitBreakerWrapper) Counts() gobreaker.Counts {
	return w.cb.Counts()
}

// ShouldTripCircuit determines if an error should cause the circuit to trip
func ShouldTripCircuit(err error) bool {
	if err == nil {
		return false
	}

	// Check for OpenAI API errors
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429: // Rate limit - don't trip, this is expected
			return false
		case apiErr.HTTPStatusCode >= 400:
			return true
		}
	}

	// Check for timeout errors - don't trip on timeouts
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// Unknown errors should trip the circuit
	return true
}
