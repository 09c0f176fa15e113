package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

// Document is a draft to be ranked
type Document struct {
	Path    string // Stable path or identifier of the draft
	Content string // Raw text, immutable for the run
}

// Record holds the scores computed for one document.
// It is also the persisted cache format and the batch output row.
type Record struct {
	File             string  `json:"file"`
	JudgmentScore    int     `json:"llm_score"`
	GrammarScore     float64 `json:"grammar_score"`
	ReadabilityScore float64 `json:"readability_score"`
	CompositeScore   float64 `json:"composite_score"`
	Notes            string  `json:"notes"`
}

// Weights controls how the three sub-scores contribute to the composite.
// They are not required to sum to 1.
type Weights struct {
	Judgment    float64 `json:"judgment" koanf:"llm"`
	Grammar     float64 `json:"grammar" koanf:"grammar"`
	Readability float64 `json:"readability" koanf:"readability"`
}

// DefaultWeights returns the 0.6 / 0.2 / 0.2 split
func DefaultWeights() Weights {
	return Weights{Judgment: 0.6, Grammar: 0.2, Readability: 0.2}
}

// Validate rejects negative weights
func (w Weights) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"judgment", w.Judgment},
		{"grammar", w.Grammar},
		{"readability", w.Readability},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%w: %s weight is %v", ErrNonFiniteWeight, c.name, c.value)
		}
		if c.value < 0 {
			return fmt.Errorf("%w: %s weight is %v", ErrNegativeWeight, c.name, c.value)
		}
	}
	return nil
}

// GrammarMatch is a single issue reported by a grammar checker.
// Only the number of matches feeds the score.
type GrammarMatch struct {
	RuleID  string
	Message string
	Offset  int
	Length  int
}

// GrammarChecker finds grammar issues in a text
type GrammarChecker interface {
	Check(ctx context.Context, text string) ([]GrammarMatch, error)
}

// Readability carries the two metrics the readability score is built from
type Readability struct {
	Grade float64 // Flesch-Kincaid grade level
	Ease  float64 // Flesch reading ease
}

// ReadabilityMetrics computes readability metrics for a text
type ReadabilityMetrics interface {
	Metrics(text string) (Readability, error)
}

// JudgeRequest is a single prompt sent to a text-quality judge
type JudgeRequest struct {
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Judge returns the raw model output for a prompt
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (string, error)
}

// Cache persists records by document identity
type Cache interface {
	// Get returns the stored record and whether it exists
	Get(ctx context.Context, id string) (Record, bool, error)
	Put(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
	Keys(ctx context.Context) ([]string, error)
	// Clear removes every entry and returns how many were removed
	Clear(ctx context.Context) (int, error)
}

// Progress is notified once per finished document.
// *progressbar.ProgressBar satisfies it.
type Progress interface {
	Add(num int) error
}

// OpenAIClient defines the interface for interacting with OpenAI API
type OpenAIClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GrammarErrorPolicy decides what a grammar failure does to the run
type GrammarErrorPolicy string

const (
	// GrammarErrorAbort stops the run with the grammar error
	GrammarErrorAbort GrammarErrorPolicy = "abort"
	// GrammarErrorSkip drops the document from the ranking and continues
	GrammarErrorSkip GrammarErrorPolicy = "skip"
)

// Config holds the settings of the OpenAI judgment client
type Config struct {
	APIKey               string                // OpenAI API key (required)
	BaseURL              string                // Optional API base URL override
	Model                string                // Default model when a request names none
	PromptText           string                // Custom judgment prompt template
	EnableCircuitBreaker bool                  // Enable circuit breaker pattern
	EnableRetry          bool                  // Enable retry with backoff
	Timeout              time.Duration         // HTTP timeout, 0 keeps the provider default
	CircuitBreakerConfig *CircuitBreakerConfig // Circuit breaker configuration
	RetryConfig          *RetryConfig          // Retry configuration
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	MaxRequests   uint32                                      // Max requests in half-open state
	Interval      time.Duration                               // Interval for closed state
	Timeout       time.Duration                               // Timeout for open state
	ReadyToTrip   func(counts gobreaker.Counts) bool          // Custom trip condition
	OnStateChange func(name string, from, to gobreaker.State) // State change callback
}

// RetryConfig holds retry settings
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts, including the first
	Strategy     RetryStrategy // Backoff strategy to use
	InitialDelay time.Duration // Initial delay between retries
	MaxDelay     time.Duration // Maximum delay between retries
}

// RetryStrategy defines the backoff strategy for retries
type RetryStrategy string

const (
	RetryStrategyExponential RetryStrategy = "exponential"
	RetryStrategyConstant    RetryStrategy = "constant"
	RetryStrategyFibonacci   RetryStrategy = "fibonacci"

	// DefaultModel is used when no model is configured
	DefaultModel = openai.GPT4oMini

	// NeutralReadability is returned when readability metrics fail
	NeutralReadability = 50.0
	// NeutralEffort is returned when the judgment cannot be obtained
	NeutralEffort = 50
	// DefaultNote replaces a missing or empty judgment note
	DefaultNote = "No specific issues noted"
	// ParseErrorPrefix starts every fallback judgment note
	ParseErrorPrefix = "LLM parse error: "

	judgeMaxTokens     = 100
	parseErrorMaxChars = 50
)

// Error definitions
var (
	ErrMissingAPIKey   = errors.New("OpenAI API key is required")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrNoDocuments     = errors.New("no documents to rank")
	ErrNegativeWeight  = errors.New("weights must be non-negative")
	ErrNonFiniteWeight = errors.New("weights must be finite numbers")
	ErrEmptyResponse   = errors.New("judge returned an empty response")
	ErrNoChoices       = errors.New("OpenAI returned empty response with no choices")
	ErrInvalidJudgment = errors.New("invalid judgment payload")
	ErrUnknownIdentity = errors.New("unknown identity function")
	ErrUnknownPolicy   = errors.New("unknown grammar error policy")
	ErrCorruptEntry    = errors.New("corrupt cache entry")
	ErrInvalidCacheKey = errors.New("invalid cache key")
	ErrGrammarCheck    = errors.New("grammar check failed")
)

// judgmentPayload is the JSON object the judge is asked to produce
type judgmentPayload struct {
	EditEffort any `json:"edit_effort"`
	Notes      any `json:"notes"`
}
