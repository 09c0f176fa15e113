package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Ranker scores documents, caches their records and orders them by composite
type Ranker struct {
	grammar     *GrammarScorer
	readability *ReadabilityScorer
	judgment    *JudgmentScorer
	cache       Cache

	identity    IdentityFunc
	weights     Weights
	model       string
	reweight    bool
	policy      GrammarErrorPolicy
	concurrency int
	progress    Progress
	metrics     *MetricsRecorder
	logger      *slog.Logger

	flight singleflight.Group
}

// RankerOption configures a Ranker
type RankerOption func(*Ranker)

// WithWeights sets the weights applied to freshly computed records
func WithWeights(w Weights) RankerOption {
	return func(r *Ranker) {
		r.weights = w
	}
}

// WithModel sets the judge model identifier
func WithModel(model string) RankerOption {
	return func(r *Ranker) {
		r.model = model
	}
}

// WithIdentity sets how documents map to cache keys
func WithIdentity(fn IdentityFunc) RankerOption {
	return func(r *Ranker) {
		r.identity = fn
	}
}

// WithReweightCached recomputes the composite of cache hits under the
// current weights. The stored entry is left as it is.
func WithReweightCached(enabled bool) RankerOption {
	return func(r *Ranker) {
		r.reweight = enabled
	}
}

// WithGrammarErrorPolicy chooses between aborting and skipping on grammar failures
func WithGrammarErrorPolicy(p GrammarErrorPolicy) RankerOption {
	return func(r *Ranker) {
		r.policy = p
	}
}

// WithConcurrency sets how many documents are scored at once
func WithConcurrency(n int) RankerOption {
	return func(r *Ranker) {
		r.concurrency = n
	}
}

// WithProgress reports each finished document to p
func WithProgress(p Progress) RankerOption {
	return func(r *Ranker) {
		r.progress = p
	}
}

// WithMetrics records ranking metrics on m
func WithMetrics(m *MetricsRecorder) RankerOption {
	return func(r *Ranker) {
		r.metrics = m
	}
}

// WithLogger sets the ranker logger
func WithLogger(logger *slog.Logger) RankerOption {
	return func(r *Ranker) {
		r.logger = logger
	}
}

// NewRanker creates a ranker from the three scorers and a cache
func NewRanker(grammar *GrammarScorer, readability *ReadabilityScorer, judgment *JudgmentScorer, cache Cache, opts ...RankerOption) (*Ranker, error) {
	if grammar == nil || readability == nil || judgment == nil {
		return nil, fmt.Errorf("%w: all three scorers are required", ErrInvalidConfig)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: cache is required", ErrInvalidConfig)
	}

	r := &Ranker{
		grammar:     grammar,
		readability: readability,
		judgment:    judgment,
		cache:       cache,
		identity:    FilenameStem,
		weights:     DefaultWeights(),
		model:       DefaultModel,
		policy:      GrammarErrorAbort,
		concurrency: 1,
		metrics:     NewMetricsRecorder(false),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.weights.Validate(); err != nil {
		return nil, err
	}
	if r.policy != GrammarErrorAbort && r.policy != GrammarErrorSkip {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, r.policy)
	}
	if r.concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}
	if r.identity == nil {
		return nil, fmt.Errorf("%w: identity function is nil", ErrInvalidConfig)
	}
	return r, nil
}

// RankAll scores every document and returns the records ordered by
// composite score, highest first, ties in input order
func (r *Ranker) RankAll(ctx context.Context, docs []Document) ([]Record, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	r.logger.Info("Ranking documents",
		"documents", len(docs),
		"concurrency", r.concurrency,
		"model", r.model)

	slots := make([]*Record, len(docs))

	if r.concurrency == 1 {
		for i, doc := range docs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rec, err := r.rankOne(ctx, doc)
			if err != nil {
				return nil, err
			}
			slots[i] = rec
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for i, doc := range docs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec, err := r.rankOne(gctx, doc)
				if err != nil {
					return err
				}
				slots[i] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	records := make([]Record, 0, len(docs))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	SortRanking(records)

	r.logger.Info("All documents ranked",
		"documents", len(docs),
		"ranked", len(records),
		"skipped", len(docs)-len(records))

	return records, nil
}

// rankOne returns nil without error when the document is skipped
func (r *Ranker) rankOne(ctx context.Context, doc Document) (*Record, error) {
	defer r.tick()

	rec, err := r.ScoreDocument(ctx, doc)
	if err != nil {
		if r.policy == GrammarErrorSkip && errors.Is(err, ErrGrammarCheck) {
			r.logger.Warn("Skipping document after grammar failure",
				"file", doc.Path,
				"error", err)
			r.metrics.RecordDocument("skipped")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to score %s: %w", doc.Path, err)
	}
	return &rec, nil
}

// ScoreDocument returns the cached record of doc, computing and storing it
// on a miss. Work for one identity runs at most once at a time.
func (r *Ranker) ScoreDocument(ctx context.Context, doc Document) (Record, error) {
	id := r.identity(doc)

	v, err, _ := r.flight.Do(id, func() (any, error) {
		return r.lookupOrCompute(ctx, id, doc)
	})
	if err != nil {
		return Record{}, err
	}
	return v.(Record), nil
}

func (r *Ranker) lookupOrCompute(ctx context.Context, id string, doc Document) (Record, error) {
	if rec, ok := r.lookup(ctx, id); ok {
		r.metrics.RecordDocument("cache")
		if r.reweight {
			rec = Recompose(rec, r.weights)
		}
		r.logger.Debug("Using cached record",
			"id", id,
			"file", rec.File,
			"composite", rec.CompositeScore)
		return rec, nil
	}

	rec, err := r.compute(ctx, doc)
	if err != nil {
		return Record{}, err
	}

	if err := r.cache.Put(ctx, id, rec); err != nil {
		// The record is still valid for this run
		r.logger.Warn("Failed to persist record",
			"id", id,
			"error", err)
	}
	r.metrics.RecordDocument("computed")
	r.metrics.RecordComposite(rec.CompositeScore)

	r.logger.Debug("Document scored",
		"id", id,
		"file", rec.File,
		"llm", rec.JudgmentScore,
		"grammar", rec.GrammarScore,
		"readability", rec.ReadabilityScore,
		"composite", rec.CompositeScore,
		"notes", rec.Notes)

	return rec, nil
}

// lookup treats unreadable and corrupt entries as misses
func (r *Ranker) lookup(ctx context.Context, id string) (Record, bool) {
	rec, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		r.logger.Warn("Ignoring unreadable cache entry",
			"id", id,
			"error", err)
		return Record{}, false
	}
	return rec, ok
}

// compute runs the grammar check first so a failing checker costs no judge call
func (r *Ranker) compute(ctx context.Context, doc Document) (Record, error) {
	grammar, err := r.grammar.Score(ctx, doc.Content)
	if err != nil {
		return Record{}, err
	}

	readability := r.readability.Score(doc.Content)
	effort, notes := r.judgment.Score(ctx, doc.Content, r.model)

	return Record{
		File:             doc.Path,
		JudgmentScore:    effort,
		GrammarScore:     grammar,
		ReadabilityScore: readability,
		CompositeScore:   Combine(effort, grammar, readability, r.weights),
		Notes:            notes,
	}, nil
}

func (r *Ranker) tick() {
	if r.progress != nil {
		_ = r.progress.Add(1)
	}
}
