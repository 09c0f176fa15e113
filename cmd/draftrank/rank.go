package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"github.com/JohnPlummer/draft-ranker/config"
	"github.com/JohnPlummer/draft-ranker/corpus"
	"github.com/JohnPlummer/draft-ranker/languagetool"
	"github.com/JohnPlummer/draft-ranker/report"
	"github.com/JohnPlummer/draft-ranker/scorer"
	"github.com/JohnPlummer/draft-ranker/sqlitecache"
	"github.com/JohnPlummer/draft-ranker/textstat"
)

func runRank(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: set %s in the environment or a .env file", scorer.ErrMissingAPIKey, config.APIKeyEnv)
	}

	paths, err := corpus.Discover(cfg.Folder, cfg.Exclude, cfg.Extensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no %v files found in %s", scorer.ErrNoDocuments, cfg.Extensions, cfg.Folder)
	}
	docs, err := corpus.Load(paths)
	if err != nil {
		return err
	}

	metrics := scorer.NewMetricsRecorder(cfg.MetricsFile != "")

	ltOpts := []languagetool.Option{languagetool.WithLanguage(cfg.Grammar.Language)}
	if cfg.Grammar.Timeout > 0 {
		ltOpts = append(ltOpts, languagetool.WithTimeout(cfg.Grammar.Timeout))
	}
	checker := languagetool.New(cfg.Grammar.URL, ltOpts...)
	if cfg.Grammar.CheckOnStart {
		if err := checker.Ping(ctx); err != nil {
			return fmt.Errorf("grammar service unavailable at %s: %w", cfg.Grammar.URL, err)
		}
	}

	promptText, err := readPrompt(cfg.PromptFile)
	if err != nil {
		return err
	}
	judge, err := scorer.NewJudge(cfg.ScorerConfig(promptText), metrics)
	if err != nil {
		return err
	}
	judgment, err := scorer.NewJudgmentScorer(judge, promptText,
		scorer.WithJudgmentMetrics(metrics),
		scorer.WithJudgmentLogger(logger))
	if err != nil {
		return err
	}

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	identity, err := scorer.IdentityByName(cfg.Cache.Identity)
	if err != nil {
		return err
	}

	opts := []scorer.RankerOption{
		scorer.WithWeights(cfg.Weights),
		scorer.WithModel(cfg.Model),
		scorer.WithIdentity(identity),
		scorer.WithReweightCached(cfg.Cache.Reweight),
		scorer.WithGrammarErrorPolicy(scorer.GrammarErrorPolicy(cfg.Grammar.OnError)),
		scorer.WithConcurrency(cfg.Concurrency),
		scorer.WithMetrics(metrics),
		scorer.WithLogger(logger),
	}

	// JSON output stays machine readable, so no bar is drawn for it
	var bar *progressbar.ProgressBar
	if !cfg.NoProgress && cfg.Format != config.FormatJSON {
		bar = progressbar.NewOptions(len(docs),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("Scoring drafts"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts, scorer.WithProgress(bar))
	}

	ranker, err := scorer.NewRanker(
		scorer.NewGrammarScorer(checker),
		scorer.NewReadabilityScorer(textstat.New(), logger),
		judgment,
		cache,
		opts...,
	)
	if err != nil {
		return err
	}

	records, err := ranker.RankAll(ctx, docs)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	if err := writeReport(cfg, records, stdout); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := scorer.WriteMetrics(cfg.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics to %s: %w", cfg.MetricsFile, err)
		}
	}
	return nil
}

func writeReport(cfg config.Config, records []scorer.Record, stdout io.Writer) error {
	if cfg.Format == config.FormatJSON {
		if err := report.JSON(stdout, records, cfg.Folder); err != nil {
			return err
		}
	} else if err := report.Table(stdout, records); err != nil {
		return err
	}

	if cfg.CSVPath == "" {
		return nil
	}

	if dir := filepath.Dir(cfg.CSVPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(cfg.CSVPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.CSVPath, err)
	}
	if err := report.CSV(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.CSVPath, err)
	}

	if cfg.Format != config.FormatJSON {
		fmt.Fprintf(stdout, "\nResults exported to %s\n", cfg.CSVPath)
	}
	return nil
}

// readPrompt returns "" when no prompt file is configured
func readPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}
	return string(data), nil
}

// openCache returns the configured backend and a function releasing it
func openCache(cfg config.Config) (scorer.Cache, func() error, error) {
	dir := cfg.CacheDir()

	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		c, err := sqlitecache.Open(filepath.Join(dir, sqlitecache.FileName))
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case config.BackendFile, "":
		c, err := scorer.NewFileCache(dir)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown cache backend %q", scorer.ErrInvalidConfig, cfg.Cache.Backend)
	}
}
