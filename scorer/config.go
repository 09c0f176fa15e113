package scorer

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewDefaultConfig creates a config with sensible defaults: one attempt per
// judgment, no circuit breaker, provider default timeout
func NewDefaultConfig(apiKey string) Config {
	return Config{
		APIKey: apiKey,
		Model:  DefaultModel,
	}
}

// DefaultRetryConfig returns three attempts with capped exponential backoff
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		Strategy:     RetryStrategyExponential,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures or a
// failure rate above 60% over at least 10 requests
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio > 0.6)
		},
	}
}

// WithCircuitBreaker enables circuit breaker with default settings
func (c Config) WithCircuitBreaker() Config {
	c.EnableCircuitBreaker = true
	c.CircuitBreakerConfig = DefaultCircuitBreakerConfig()
	return c
}

// WithCircuitBreakerConfig enables circuit breaker with custom settings
func (c Config) WithCircuitBreakerConfig(config *CircuitBreakerConfig) Config {
	c.EnableCircuitBreaker = true
	c.CircuitBreakerConfig = config
	return c
}

// WithRetry enables retry with default exponential backoff
func (c Config) WithRetry() Config {
	c.EnableRetry = true
	c.RetryConfig = DefaultRetryConfig()
	return c
}

// WithRetryConfig enables retry with custom settings
func (c Config) WithRetryConfig(config *RetryConfig) Config {
	c.EnableRetry = true
	c.RetryConfig = config
	return c
}

// WithModel sets the OpenAI model
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithBaseURL points the client at another OpenAI compatible endpoint
func (c Config) WithBaseURL(url string) Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithPromptTemplate sets a custom judgment prompt template
func (c Config) WithPromptTemplate(templateText string) Config {
	c.PromptText = templateText
	return c
}

// Validate checks if the config is valid
func (c Config) Validate() error {
	// Required fields
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	// Timeout validation
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}

	// Circuit breaker validation
	if c.EnableCircuitBreaker && c.CircuitBreakerConfig == nil {
		return fmt.Errorf("%w: circuit breaker enabled but config is nil", ErrInvalidConfig)
	}

	// Retry validation
	if c.EnableRetry {
		if err := c.RetryConfig.validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	// Template validation
	if c.PromptText != "" {
		if _, err := parsePrompt(c.PromptText); err != nil {
			return err
		}
	}

	return nil
}

func (r *RetryConfig) validate() error {
	if r == nil {
		return errors.New("retry enabled but config is nil")
	}
	if !isValidRetryStrategy(r.Strategy) {
		return fmt.Errorf("invalid retry strategy: %s", r.Strategy)
	}
	if r.MaxAttempts <= 0 {
		return errors.New("retry MaxAttempts must be positive")
	}
	if r.InitialDelay <= 0 {
		return errors.New("retry InitialDelay must be positive")
	}
	if r.MaxDelay <= 0 {
		return errors.New("retry MaxDelay must be positive")
	}
	return nil
}

// isValidRetryStrategy checks if the retry strategy is valid
func isValidRetryStrategy(strategy RetryStrategy) bool {
	switch strategy {
	case RetryStrategyExponential, RetryStrategyConstant, RetryStrategyFibonacci:
		return true
	default:
		return false
	}
}
