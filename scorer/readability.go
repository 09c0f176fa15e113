package scorer

import (
	"log/slog"
	"math"
)

const (
	baselineGrade   = 8.0
	pointsPerGrade  = 10.0
	gradeShare      = 0.6
	easeShare       = 0.4
	maxReadingScore = 100.0
)

// ReadabilityScorer converts readability metrics into a 0-100 difficulty score
type ReadabilityScorer struct {
	metrics ReadabilityMetrics
	logger  *slog.Logger
}

// NewReadabilityScorer creates a readability scorer backed by metrics
func NewReadabilityScorer(metrics ReadabilityMetrics, logger *slog.Logger) *ReadabilityScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadabilityScorer{metrics: metrics, logger: logger}
}

// Score never fails: metric errors are logged and NeutralReadability is returned
func (s *ReadabilityScorer) Score(text string) float64 {
	r, err := s.metrics.Metrics(text)
	if err != nil {
		s.logger.Warn("Readability calculation failed, using neutral score",
			"error", err,
			"score", NeutralReadability)
		return NeutralReadability
	}
	return ReadabilityDifficulty(r)
}

// ReadabilityDifficulty blends the grade-level gap above 8th grade with
// inverted reading ease
func ReadabilityDifficulty(r Readability) float64 {
	if math.IsNaN(r.Grade) || math.IsNaN(r.Ease) {
		return NeutralReadability
	}
	easeInverted := clamp(maxReadingScore-r.Ease, 0, maxReadingScore)
	gradeComponent := math.Max(r.Grade-baselineGrade, 0) * pointsPerGrade
	return clamp(gradeComponent*gradeShare+easeInverted*easeShare, 0, maxReadingScore)
}
