// Package textstat computes Flesch readability metrics for English text.
//
// Tokenization, sentence splitting and syllable counting come from
// github.com/jdkato/prose/summarize.
package textstat

import (
	"errors"

	"github.com/jdkato/prose/summarize"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

// ErrNoWords is returned for text without any countable word
var ErrNoWords = errors.New("text contains no words")

// Counts are the raw text statistics the formulas are built from
type Counts struct {
	Words     int
	Sentences int
	Syllables int
}

// Analyzer implements scorer.ReadabilityMetrics
type Analyzer struct{}

// New returns an Analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Metrics returns the Flesch-Kincaid grade and the Flesch reading ease of text
func (a *Analyzer) Metrics(text string) (scorer.Readability, error) {
	doc := summarize.NewDocument(text)
	// The library divides by these counts
	if doc.NumWords == 0 || doc.NumSentences == 0 {
		return scorer.Readability{}, ErrNoWords
	}
	return scorer.Readability{
		Grade: doc.FleschKincaid(),
		Ease:  doc.FleschReadingEase(),
	}, nil
}

// Count tallies words, sentences and syllables of text
func Count(text string) Counts {
	doc := summarize.NewDocument(text)
	if doc.NumWords == 0 {
		return Counts{}
	}
	return Counts{
		Words:     int(doc.NumWords),
		Sentences: int(doc.NumSentences),
		Syllables: int(doc.NumSyllables),
	}
}
