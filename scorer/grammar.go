package scorer

import (
	"context"
	"fmt"
	"strings"
)

// errorsPerThousandCap is the density at which the grammar score saturates
const errorsPerThousandCap = 10.0

// GrammarScorer converts grammar checker matches into a 0-100 score
type GrammarScorer struct {
	checker GrammarChecker
}

// NewGrammarScorer creates a grammar scorer backed by checker
func NewGrammarScorer(checker GrammarChecker) *GrammarScorer {
	return &GrammarScorer{checker: checker}
}

// Score returns the grammar error score of text, higher meaning worse.
// Checker failures are returned to the caller; there is no fallback.
func (s *GrammarScorer) Score(ctx context.Context, text string) (float64, error) {
	matches, err := s.checker.Check(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGrammarCheck, err)
	}
	return GrammarDensityScore(len(matches), WordCount(text)), nil
}

// GrammarDensityScore scales errors per 1000 words so that a density of 10
// or more maps to 100
func GrammarDensityScore(matches, words int) float64 {
	if words < 1 {
		words = 1
	}
	density := float64(matches) / float64(words) * 1000
	return clamp(density*(100/errorsPerThousandCap), 0, 100)
}

// WordCount counts whitespace separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}
