package scorer

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

// registry holds every draft-ranker collector
var registry = prometheus.NewRegistry()

var (
	// Document metrics
	documentsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftrank_documents_total",
			Help: "Total number of documents processed by source",
		},
		[]string{"source"}, // cache, computed, skipped
	)

	compositeDistribution = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftrank_composite_score",
			Help:    "Distribution of freshly computed composite scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Judgment metrics
	judgmentDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftrank_judgment_duration_seconds",
			Help:    "Duration of judgment calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	judgmentFallbacks = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftrank_judgment_fallbacks_total",
			Help: "Total number of judgments replaced by the neutral effort",
		},
		[]string{"reason"},
	)

	apiTokensUsed = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftrank_api_tokens_used_total",
			Help: "Total number of tokens used in API calls",
		},
		[]string{"type"}, // prompt, completion, total
	)

	// Resilience metrics
	retryTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftrank_retry_total",
			Help: "Total number of judge retries by reason",
		},
		[]string{"reason"},
	)

	circuitBreakerState = promauto.With(registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "draftrank_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	circuitBreakerTrips = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftrank_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)
)

// MetricsRecorder provides methods to record metrics
type MetricsRecorder struct {
	enabled bool
}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder(enabled bool) *MetricsRecorder {
	return &MetricsRecorder{enabled: enabled}
}

// RecordDocument counts a document by where its record came from
func (m *MetricsRecorder) RecordDocument(source string) {
	if m == nil || !m.enabled {
		return
	}
	documentsTotal.WithLabelValues(source).Inc()
}

// RecordComposite records a computed composite score
func (m *MetricsRecorder) RecordComposite(score float64) {
	if m == nil || !m.enabled {
		return
	}
	compositeDistribution.Observe(score)
}

// RecordJudgmentDuration records the duration of one judge call
func (m *MetricsRecorder) RecordJudgmentDuration(seconds float64, model string) {
	if m == nil || !m.enabled {
		return
	}
	judgmentDuration.WithLabelValues(model).Observe(seconds)
}

// RecordJudgmentFallback counts a neutral judgment
func (m *MetricsRecorder) RecordJudgmentFallback(reason string) {
	if m == nil || !m.enabled {
		return
	}
	judgmentFallbacks.WithLabelValues(reason).Inc()
}

// RecordTokensUsed records tokens used
func (m *MetricsRecorder) RecordTokensUsed(tokenType string, count int) {
	if m == nil || !m.enabled {
		return
	}
	apiTokensUsed.WithLabelValues(tokenType).Add(float64(count))
}

// RecordRetry records a retry
func (m *MetricsRecorder) RecordRetry(reason string) {
	if m == nil || !m.enabled {
		return
	}
	retryTotal.WithLabelValues(reason).Inc()
}

// RecordCircuitBreakerState records circuit breaker state
func (m *MetricsRecorder) RecordCircuitBreakerState(name string, state int) {
	if m == nil || !m.enabled {
		return
	}
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *MetricsRecorder) RecordCircuitBreakerTrip(name string) {
	if m == nil || !m.enabled {
		return
	}
	circuitBreakerTrips.WithLabelValues(name).Inc()
}

// Gatherer exposes the draft-ranker registry
func Gatherer() prometheus.Gatherer {
	return registry
}

// WriteMetrics writes the registry to path in the text exposition format
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}

// stateToInt converts circuit breaker state to int for metrics
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// classifyError returns error type for metrics
func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return "rate_limit"
		case apiErr.HTTPStatusCode >= 500:
			return "server_error"
		case apiErr.HTTPStatusCode >= 400:
			return "client_error"
		default:
			return "api_error"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	if errors.Is(err, gobreaker.ErrOpenState) {
		return "circuit_open"
	}

	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "circuit_half_open"
	}

	return "unknown"
}
