package scorer

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIJudge is a Judge backed by the OpenAI chat completions API
type OpenAIJudge struct {
	client       OpenAIClient
	defaultModel string
	metrics      *MetricsRecorder
}

// NewOpenAIJudge creates a judge over any OpenAIClient, including the retry
// and circuit breaker wrappers
func NewOpenAIJudge(client OpenAIClient, defaultModel string, metrics *MetricsRecorder) *OpenAIJudge {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return &OpenAIJudge{
		client:       client,
		defaultModel: defaultModel,
		metrics:      metrics,
	}
}

// NewJudge builds the client stack described by cfg and returns a judge.
// Retry is the inner layer and the circuit breaker wraps it.
func NewJudge(cfg Config, metrics *MetricsRecorder) (*OpenAIJudge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	var client OpenAIClient = openai.NewClientWithConfig(clientConfig)

	// Layer 1: Add retry logic (innermost)
	if cfg.EnableRetry {
		slog.Info("Enabling retry logic",
			"max_attempts", cfg.RetryConfig.MaxAttempts,
			"strategy", cfg.RetryConfig.Strategy)
		client = NewRetryWrapper(client, cfg.RetryConfig, metrics)
	}

	// Layer 2: Add circuit breaker (wraps retry)
	if cfg.EnableCircuitBreaker {
		slog.Info("Enabling circuit breaker",
			"max_requests", cfg.CircuitBreakerConfig.MaxRequests,
			"timeout", cfg.CircuitBreakerConfig.Timeout)
		client = NewCircuitBreakerWrapper(client, cfg.CircuitBreakerConfig, metrics)
	}

	return NewOpenAIJudge(client, cfg.Model, metrics), nil
}

// Judge sends the prompt as a single user message and returns the reply text
func (j *OpenAIJudge) Judge(ctx context.Context, req JudgeRequest) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, j.buildChatRequest(req))
	if err != nil {
		slog.Debug("OpenAI API request failed", "model", req.Model, "error", err)
		return "", err
	}

	j.metrics.RecordTokensUsed("prompt", resp.Usage.PromptTokens)
	j.metrics.RecordTokensUsed("completion", resp.Usage.CompletionTokens)
	j.metrics.RecordTokensUsed("total", resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (j *OpenAIJudge) buildChatRequest(req JudgeRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = j.defaultModel
	}

	// go-openai drops a zero temperature from the request body, which leaves
	// the provider default of 1 in effect
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}
}
