// Package scorer ranks text documents by the editing effort they need.
//
// Each document gets three sub-scores on a 0-100 scale, higher meaning more
// work is needed:
//   - Grammar: errors per 1000 words reported by a GrammarChecker, saturating at 10
//   - Readability: grade-level gap above 8th grade blended with inverted reading ease
//   - Judgment: an effort estimate returned by a Judge (an LLM), parsed defensively
//
// The Ranker combines them into a weighted composite, stores every record in a
// Cache keyed by document identity so later runs skip the expensive calls, and
// returns the records sorted by composite score with ties in input order.
//
// Basic usage:
//
//	judge, err := scorer.NewJudge(scorer.NewDefaultConfig(os.Getenv("OPENAI_API_KEY")), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	judgment, err := scorer.NewJudgmentScorer(judge, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cache, err := scorer.NewFileCache(filepath.Join(folder, scorer.CacheDirName))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := scorer.NewRanker(
//	    scorer.NewGrammarScorer(languagetool.New(languagetool.DefaultURL)),
//	    scorer.NewReadabilityScorer(textstat.New(), nil),
//	    judgment,
//	    cache,
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ranking, err := r.RankAll(ctx, docs)
package scorer
