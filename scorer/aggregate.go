package scorer

import "sort"

// Combine returns the weighted sum of the three sub-scores.
// The result is not clamped; weights that do not sum to 1 can move it
// outside [0,100].
func Combine(judgment int, grammar, readability float64, w Weights) float64 {
	return w.Judgment*float64(judgment) + w.Grammar*grammar + w.Readability*readability
}

// Recompose returns a copy of rec with the composite recomputed under w
func Recompose(rec Record, w Weights) Record {
	rec.CompositeScore = Combine(rec.JudgmentScore, rec.GrammarScore, rec.ReadabilityScore, w)
	return rec
}

// SortRanking orders records by composite score, highest first.
// Records with equal composites keep their relative order.
func SortRanking(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CompositeScore > records[j].CompositeScore
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
