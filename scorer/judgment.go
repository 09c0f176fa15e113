package scorer

import (
	"context"
	"errors"
	"log/slog"
	"text/template"
	"time"
)

// JudgmentScorer asks a judge for an editing-effort estimate.
// It never fails: every error becomes a neutral effort with an explanatory note.
type JudgmentScorer struct {
	judge   Judge
	prompt  *template.Template
	metrics *MetricsRecorder
	logger  *slog.Logger
}

// JudgmentOption configures a JudgmentScorer
type JudgmentOption func(*JudgmentScorer)

// WithJudgmentMetrics records fallbacks and call durations on m
func WithJudgmentMetrics(m *MetricsRecorder) JudgmentOption {
	return func(s *JudgmentScorer) {
		s.metrics = m
	}
}

// WithJudgmentLogger sets the logger used for absorbed errors
func WithJudgmentLogger(logger *slog.Logger) JudgmentOption {
	return func(s *JudgmentScorer) {
		s.logger = logger
	}
}

// NewJudgmentScorer creates a judgment scorer. An empty promptText selects
// the built-in prompt; a custom one must be a text/template using {{.Draft}}.
func NewJudgmentScorer(judge Judge, promptText string, opts ...JudgmentOption) (*JudgmentScorer, error) {
	if promptText == "" {
		text, err := DefaultPrompt()
		if err != nil {
			return nil, err
		}
		promptText = text
	}

	tmpl, err := parsePrompt(promptText)
	if err != nil {
		return nil, err
	}

	s := &JudgmentScorer{
		judge:   judge,
		prompt:  tmpl,
		metrics: NewMetricsRecorder(false),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score returns the effort estimate (0-100) and a one-sentence note for text
func (s *JudgmentScorer) Score(ctx context.Context, text, model string) (int, string) {
	judgment, err := s.judgeText(ctx, text, model)
	if err != nil {
		s.logger.Warn("Error parsing LLM response, using neutral effort",
			"error", err,
			"model", model,
			"effort", NeutralEffort)
		s.metrics.RecordJudgmentFallback(fallbackReason(err))
		return NeutralEffort, fallbackNote(err)
	}
	return judgment.Effort, judgment.Notes
}

func (s *JudgmentScorer) judgeText(ctx context.Context, text, model string) (Judgment, error) {
	prompt, err := renderPrompt(s.prompt, text)
	if err != nil {
		return Judgment{}, err
	}

	start := time.Now()
	raw, err := s.judge.Judge(ctx, JudgeRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: 0,
		MaxTokens:   judgeMaxTokens,
	})
	s.metrics.RecordJudgmentDuration(time.Since(start).Seconds(), model)
	if err != nil {
		return Judgment{}, err
	}

	return ParseJudgment(raw)
}

// fallbackReason returns the metric label for a judgment failure
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrNoChoices):
		return "empty_response"
	case errors.Is(err, ErrInvalidJudgment):
		return "invalid_payload"
	}

	if kind := classifyError(err); kind != "unknown" {
		return kind
	}
	return "parse_error"
}
