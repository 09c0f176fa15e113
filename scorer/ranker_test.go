package scorer_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

// countingProgress counts finished documents
type countingProgress struct {
	n atomic.Int64
}

func (p *countingProgress) Add(num int) error {
	p.n.Add(int64(num))
	return nil
}

// tagged returns a 2000 word document whose first word is tag, so grammar
// scores are multiples of 5
func tagged(name, tag string) scorer.Document {
	return scorer.Document{
		Path:    filepath.Join("drafts", name+".md"),
		Content: tag + " " + strings.Repeat("word ", 1999),
	}
}

func tagOf(text string) string {
	for _, tag := range []string{"doc1", "doc2", "doc3", "doc4"} {
		if strings.Contains(text, tag) {
			return tag
		}
	}
	return ""
}

var _ = Describe("Ranker", func() {
	var (
		ctx      context.Context
		checker  *mockChecker
		metrics  *mockMetrics
		judge    *mockJudge
		cache    *memoryCache
		judgment *scorer.JudgmentScorer
	)

	BeforeEach(func() {
		ctx = context.Background()
		checker = &mockChecker{}
		metrics = &mockMetrics{}
		judge = &mockJudge{}
		cache = newMemoryCache()

		var err error
		judgment, err = scorer.NewJudgmentScorer(judge, "")
		Expect(err).ToNot(HaveOccurred())
	})

	newRanker := func(opts ...scorer.RankerOption) *scorer.Ranker {
		r, err := scorer.NewRanker(
			scorer.NewGrammarScorer(checker),
			scorer.NewReadabilityScorer(metrics, nil),
			judgment,
			cache,
			opts...,
		)
		Expect(err).ToNot(HaveOccurred())
		return r
	}

	files := func(records []scorer.Record) []string {
		out := make([]string, len(records))
		for i, r := range records {
			out[i] = filepath.Base(r.File)
		}
		return out
	}

	Describe("NewRanker", func() {
		It("should require every scorer and a cache", func() {
			_, err := scorer.NewRanker(nil, scorer.NewReadabilityScorer(metrics, nil), judgment, cache)
			Expect(err).To(MatchError(scorer.ErrInvalidConfig))

			_, err = scorer.NewRanker(scorer.NewGrammarScorer(checker), scorer.NewReadabilityScorer(metrics, nil), judgment, nil)
			Expect(err).To(MatchError(scorer.ErrInvalidConfig))
		})

		It("should validate options", func() {
			build := func(opt scorer.RankerOption) error {
				_, err := scorer.NewRanker(scorer.NewGrammarScorer(checker), scorer.NewReadabilityScorer(metrics, nil), judgment, cache, opt)
				return err
			}

			Expect(build(scorer.WithWeights(scorer.Weights{Judgment: -1}))).To(MatchError(scorer.ErrNegativeWeight))
			Expect(build(scorer.WithGrammarErrorPolicy("retry"))).To(MatchError(scorer.ErrUnknownPolicy))
			Expect(build(scorer.WithConcurrency(0))).To(MatchError(scorer.ErrInvalidConfig))
			Expect(build(scorer.WithIdentity(nil))).To(MatchError(scorer.ErrInvalidConfig))
		})
	})

	Describe("RankAll", func() {
		It("should reject an empty document set", func() {
			_, err := newRanker().RankAll(ctx, nil)
			Expect(err).To(MatchError(scorer.ErrNoDocuments))
		})

		It("should rank the three document scenario", func() {
			grammarMatches := map[string]int{"doc1": 4, "doc2": 10, "doc3": 1}
			readability := map[string]scorer.Readability{
				"doc1": {Grade: 8, Ease: 75},   // 10
				"doc2": {Grade: 13, Ease: 25},  // 60
				"doc3": {Grade: 8, Ease: 87.5}, // 5
			}
			effort := map[string]int{"doc1": 80, "doc2": 40, "doc3": 10}

			checker.matches = func(text string) int { return grammarMatches[tagOf(text)] }
			metrics.readability = func(text string) scorer.Readability { return readability[tagOf(text)] }
			judge.reply = func(prompt string) string {
				return fmt.Sprintf(`{"edit_effort": %d, "notes": "n"}`, effort[tagOf(prompt)])
			}

			docs := []scorer.Document{tagged("c", "doc3"), tagged("a", "doc1"), tagged("b", "doc2")}
			records, err := newRanker().RankAll(ctx, docs)
			Expect(err).ToNot(HaveOccurred())

			Expect(files(records)).To(Equal([]string{"a.md", "b.md", "c.md"}))

			Expect(records[0].JudgmentScore).To(Equal(80))
			Expect(records[0].GrammarScore).To(BeNumerically("~", 20, 1e-9))
			Expect(records[0].ReadabilityScore).To(BeNumerically("~", 10, 1e-9))

			Expect(records[0].CompositeScore).To(BeNumerically("~", 54.0, 1e-9))
			Expect(records[1].CompositeScore).To(BeNumerically("~", 46.0, 1e-9))
			Expect(records[2].CompositeScore).To(BeNumerically("~", 8.0, 1e-9))
		})

		It("should rank precomputed records by recomputed composite", func() {
			for id, rec := range map[string]scorer.Record{
				"doc1": {File: "doc1.md", JudgmentScore: 80, GrammarScore: 20, ReadabilityScore: 10},
				"doc2": {File: "doc2.md", JudgmentScore: 40, GrammarScore: 50, ReadabilityScore: 60},
				"doc3": {File: "doc3.md", JudgmentScore: 10, GrammarScore: 5, ReadabilityScore: 5},
			} {
				Expect(cache.Put(ctx, id, rec)).To(Succeed())
			}

			docs := []scorer.Document{{Path: "doc3.md"}, {Path: "doc2.md"}, {Path: "doc1.md"}}
			records, err := newRanker(scorer.WithReweightCached(true)).RankAll(ctx, docs)
			Expect(err).ToNot(HaveOccurred())

			Expect(files(records)).To(Equal([]string{"doc1.md", "doc2.md", "doc3.md"}))
			Expect(records[0].CompositeScore).To(BeNumerically("~", 54.0, 1e-9))
			Expect(records[1].CompositeScore).To(BeNumerically("~", 46.0, 1e-9))
			Expect(records[2].CompositeScore).To(BeNumerically("~", 8.0, 1e-9))
			Expect(judge.Calls()).To(BeZero())
		})

		It("should keep equal composites in input order", func() {
			for i, composite := range []float64{30, 90, 90, 10} {
				id := fmt.Sprintf("d%d", i)
				Expect(cache.Put(ctx, id, scorer.Record{File: id + ".md", CompositeScore: composite})).To(Succeed())
			}

			docs := []scorer.Document{{Path: "d0.md"}, {Path: "d1.md"}, {Path: "d2.md"}, {Path: "d3.md"}}
			records, err := newRanker().RankAll(ctx, docs)
			Expect(err).ToNot(HaveOccurred())
			Expect(files(records)).To(Equal([]string{"d1.md", "d2.md", "d0.md", "d3.md"}))
		})

		It("should tick progress once per document", func() {
			progress := &countingProgress{}
			docs := []scorer.Document{tagged("a", "doc1"), tagged("b", "doc2")}

			_, err := newRanker(scorer.WithProgress(progress)).RankAll(ctx, docs)
			Expect(err).ToNot(HaveOccurred())
			Expect(progress.n.Load()).To(Equal(int64(2)))
		})

		It("should stop when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := newRanker().RankAll(cctx, []scorer.Document{tagged("a", "doc1")})
			Expect(err).To(MatchError(context.Canceled))
			Expect(judge.Calls()).To(BeZero())
		})
	})

	Describe("cache behaviour", func() {
		It("should not call any capability for a cached identity", func() {
			r := newRanker()
			doc := tagged("essay", "doc1")

			first, err := r.ScoreDocument(ctx, doc)
			Expect(err).ToNot(HaveOccurred())
			second, err := r.ScoreDocument(ctx, doc)
			Expect(err).ToNot(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(checker.Calls()).To(Equal(1))
			Expect(metrics.Calls()).To(Equal(1))
			Expect(judge.Calls()).To(Equal(1))

			stored, ok := cache.stored("essay")
			Expect(ok).To(BeTrue())
			Expect(stored).To(Equal(first))
		})

		It("should return a stale record under the stem identity", func() {
			r := newRanker()
			_, err := r.ScoreDocument(ctx, scorer.Document{Path: "essay.md", Content: "First version."})
			Expect(err).ToNot(HaveOccurred())

			_, err = r.ScoreDocument(ctx, scorer.Document{Path: "essay.md", Content: "Rewritten completely."})
			Expect(err).ToNot(HaveOccurred())
			Expect(judge.Calls()).To(Equal(1))
		})

		It("should rescore edited content under the content identity", func() {
			r := newRanker(scorer.WithIdentity(scorer.ContentHash))
			_, err := r.ScoreDocument(ctx, scorer.Document{Path: "essay.md", Content: "First version."})
			Expect(err).ToNot(HaveOccurred())

			_, err = r.ScoreDocument(ctx, scorer.Document{Path: "essay.md", Content: "Rewritten completely."})
			Expect(err).ToNot(HaveOccurred())
			Expect(judge.Calls()).To(Equal(2))
		})

		It("should keep cached composites unless reweighting is enabled", func() {
			cached := scorer.Record{File: "essay.md", JudgmentScore: 100, CompositeScore: 60}
			Expect(cache.Put(ctx, "essay", cached)).To(Succeed())
			doc := scorer.Document{Path: "essay.md"}
			weights := scorer.WithWeights(scorer.Weights{Judgment: 0.3})

			rec, err := newRanker(weights).ScoreDocument(ctx, doc)
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.CompositeScore).To(Equal(60.0))

			rec, err = newRanker(weights, scorer.WithReweightCached(true)).ScoreDocument(ctx, doc)
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.CompositeScore).To(BeNumerically("~", 30, 1e-9))

			stored, _ := cache.stored("essay")
			Expect(stored.CompositeScore).To(Equal(60.0))
		})

		It("should treat unreadable entries as misses", func() {
			cache.getErr = errors.New("disk on fire")

			_, err := newRanker().ScoreDocument(ctx, tagged("essay", "doc1"))
			Expect(err).ToNot(HaveOccurred())
			Expect(judge.Calls()).To(Equal(1))
		})

		It("should recompute a corrupt file entry", func() {
			dir := GinkgoT().TempDir()
			fc, err := scorer.NewFileCache(dir)
			Expect(err).ToNot(HaveOccurred())
			Expect(os.WriteFile(filepath.Join(dir, "essay.json"), []byte("{"), 0o644)).To(Succeed())

			r, err := scorer.NewRanker(scorer.NewGrammarScorer(checker), scorer.NewReadabilityScorer(metrics, nil), judgment, fc)
			Expect(err).ToNot(HaveOccurred())

			rec, err := r.ScoreDocument(ctx, tagged("essay", "doc1"))
			Expect(err).ToNot(HaveOccurred())
			Expect(judge.Calls()).To(Equal(1))

			got, ok, err := fc.Get(ctx, "essay")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(rec))
		})

		It("should still return the record when the cache write fails", func() {
			cache.putErr = errors.New("read-only file system")

			rec, err := newRanker().ScoreDocument(ctx, tagged("essay", "doc1"))
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Notes).To(Equal("ok"))
		})
	})

	Describe("failures", func() {
		It("should abort on a grammar failure without calling the judge", func() {
			checker.err = errors.New("LanguageTool unreachable")

			_, err := newRanker().RankAll(ctx, []scorer.Document{tagged("a", "doc1")})
			Expect(err).To(MatchError(scorer.ErrGrammarCheck))
			Expect(err.Error()).To(ContainSubstring("a.md"))
			Expect(judge.Calls()).To(BeZero())
			Expect(cache.puts).To(BeZero())
		})

		It("should skip documents on grammar failure when configured", func() {
			failing := &failingChecker{inner: checker, failTag: "doc2"}

			r, err := scorer.NewRanker(
				scorer.NewGrammarScorer(failing),
				scorer.NewReadabilityScorer(metrics, nil),
				judgment,
				cache,
				scorer.WithGrammarErrorPolicy(scorer.GrammarErrorSkip),
			)
			Expect(err).ToNot(HaveOccurred())

			records, err := r.RankAll(ctx, []scorer.Document{tagged("a", "doc1"), tagged("b", "doc2"), tagged("c", "doc3")})
			Expect(err).ToNot(HaveOccurred())
			Expect(files(records)).To(ConsistOf("a.md", "c.md"))
			_, stored := cache.stored("b")
			Expect(stored).To(BeFalse())
		})

		It("should use neutral scores for readability and judgment failures", func() {
			metrics.err = errors.New("no words")
			judge.err = errors.New("timeout")

			rec, err := newRanker().ScoreDocument(ctx, scorer.Document{Path: "empty.md"})
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.ReadabilityScore).To(Equal(50.0))
			Expect(rec.JudgmentScore).To(Equal(50))
			Expect(rec.Notes).To(HavePrefix("LLM parse error:"))
			Expect(rec.GrammarScore).To(BeZero())
			Expect(rec.CompositeScore).To(BeNumerically("~", 0.6*50+0.2*50, 1e-9))
		})
	})

	Describe("concurrency", func() {
		It("should produce the sequential ranking", func() {
			effort := map[string]int{"doc1": 20, "doc2": 90, "doc3": 55, "doc4": 70}
			judge.reply = func(prompt string) string {
				return fmt.Sprintf(`{"edit_effort": %d, "notes": "n"}`, effort[tagOf(prompt)])
			}
			docs := []scorer.Document{tagged("a", "doc1"), tagged("b", "doc2"), tagged("c", "doc3"), tagged("d", "doc4")}

			records, err := newRanker(scorer.WithConcurrency(3)).RankAll(ctx, docs)
			Expect(err).ToNot(HaveOccurred())
			Expect(files(records)).To(Equal([]string{"b.md", "d.md", "c.md", "a.md"}))
			Expect(judge.Calls()).To(Equal(4))
		})

		It("should score a shared identity once", func() {
			docs := []scorer.Document{
				{Path: filepath.Join("one", "notes.md"), Content: "Same stem."},
				{Path: filepath.Join("two", "notes.md"), Content: "Same stem."},
				{Path: filepath.Join("three", "notes.md"), Content: "Same stem."},
			}

			records, err := newRanker(scorer.WithConcurrency(3)).RankAll(ctx, docs)
			Expect(err).ToNot(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(judge.Calls()).To(Equal(1))
			Expect(checker.Calls()).To(Equal(1))
		})

		It("should return the first error", func() {
			checker.err = errors.New("down")
			docs := []scorer.Document{tagged("a", "doc1"), tagged("b", "doc2")}

			_, err := newRanker(scorer.WithConcurrency(2)).RankAll(ctx, docs)
			Expect(err).To(MatchError(scorer.ErrGrammarCheck))
		})
	})
})

// failingChecker fails for documents carrying failTag
type failingChecker struct {
	inner   *mockChecker
	failTag string
}

func (f *failingChecker) Check(ctx context.Context, text string) ([]scorer.GrammarMatch, error) {
	if tagOf(text) == f.failTag {
		return nil, errors.New("rate limited")
	}
	return f.inner.Check(ctx, text)
}
