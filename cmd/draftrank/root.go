package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JohnPlummer/draft-ranker/config"
	"github.com/JohnPlummer/draft-ranker/scorer"
)

// rootFlags holds the raw flag values; only flags the user set override config
type rootFlags struct {
	configPath string
	logLevel   string

	exclude       []string
	weights       string
	model         string
	json          bool
	csvPath       string
	cacheBackend  string
	identity      string
	reweight      bool
	onGrammarErr  string
	concurrency   int
	grammarURL    string
	language      string
	openAIBaseURL string
	retry         bool
	breaker       bool
	promptFile    string
	metricsFile   string
	noProgress    bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "draftrank [folder]",
		Short: "Rank drafts by the editing effort they need",
		Long: "draftrank scores every markdown draft in a folder on grammar density, " +
			"readability and an LLM editing-effort estimate, caches the results, " +
			"and prints the drafts ordered from most to least work needed.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, f, args)
			if err != nil {
				return err
			}
			return runRank(cmd.Context(), cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (default warn)")
	pf.StringVar(&f.cacheBackend, "cache-backend", "", "Cache backend: file or sqlite (default file)")

	fl := cmd.Flags()
	fl.StringSliceVarP(&f.exclude, "exclude", "e", nil, "Subfolders to skip, relative to the folder (repeatable)")
	fl.StringVar(&f.weights, "weights", "", "Comma separated LLM,GRAMMAR,READABILITY weights (default 0.6,0.2,0.2)")
	fl.StringVar(&f.model, "model", "", "OpenAI model used for the judgment (default "+scorer.DefaultModel+")")
	fl.BoolVar(&f.json, "json", false, "Print the ranking as JSON instead of a table")
	fl.StringVarP(&f.csvPath, "output", "o", "", "Also write the ranking to this CSV file")
	fl.StringVar(&f.identity, "identity", "", "Cache identity: stem or content (default stem)")
	fl.BoolVar(&f.reweight, "reweight", false, "Recompute cached composites with the current weights")
	fl.StringVar(&f.onGrammarErr, "on-grammar-error", "", "What a grammar failure does: abort or skip (default abort)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Number of drafts scored at once (default 1)")
	fl.StringVar(&f.grammarURL, "grammar-url", "", "LanguageTool server URL")
	fl.StringVar(&f.language, "language", "", "LanguageTool language code (default en-US)")
	fl.StringVar(&f.openAIBaseURL, "openai-base-url", "", "OpenAI compatible API base URL")
	fl.BoolVar(&f.retry, "retry", false, "Retry failed judgment calls with backoff")
	fl.BoolVar(&f.breaker, "circuit-breaker", false, "Stop calling the judge after repeated failures")
	fl.StringVar(&f.promptFile, "prompt-file", "", "Judgment prompt template file using {{.Draft}}")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	fl.BoolVar(&f.noProgress, "no-progress", false, "Hide the progress bar")

	cmd.AddCommand(newCacheCmd(f), newVersionCmd())
	return cmd
}

// loadConfig layers explicitly set flags over the file and environment config
func loadConfig(cmd *cobra.Command, f *rootFlags, args []string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if len(args) > 0 {
		cfg.Folder = args[0]
	}
	if err := applyFlags(cmd.Flags(), f, &cfg); err != nil {
		return cfg, nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	logger = logger.With("run_id", uuid.NewString())
	return cfg, logger, nil
}

func applyFlags(fs *pflag.FlagSet, f *rootFlags, cfg *config.Config) error {
	set := fs.Changed

	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("cache-backend") {
		cfg.Cache.Backend = f.cacheBackend
	}
	if set("exclude") {
		cfg.Exclude = f.exclude
	}
	if set("weights") {
		w, err := parseWeights(f.weights)
		if err != nil {
			return err
		}
		cfg.Weights = w
	}
	if set("model") {
		cfg.Model = f.model
	}
	if set("json") && f.json {
		cfg.Format = config.FormatJSON
	}
	if set("output") {
		cfg.CSVPath = f.csvPath
	}
	if set("identity") {
		cfg.Cache.Identity = f.identity
	}
	if set("reweight") {
		cfg.Cache.Reweight = f.reweight
	}
	if set("on-grammar-error") {
		cfg.Grammar.OnError = f.onGrammarErr
	}
	if set("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if set("grammar-url") {
		cfg.Grammar.URL = f.grammarURL
	}
	if set("language") {
		cfg.Grammar.Language = f.language
	}
	if set("openai-base-url") {
		cfg.OpenAI.BaseURL = f.openAIBaseURL
	}
	if set("retry") {
		cfg.OpenAI.Retry.Enabled = f.retry
	}
	if set("circuit-breaker") {
		cfg.OpenAI.CircuitBreaker = f.breaker
	}
	if set("prompt-file") {
		cfg.PromptFile = f.promptFile
	}
	if set("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if set("no-progress") {
		cfg.NoProgress = f.noProgress
	}
	return nil
}

// parseWeights reads "0.6,0.2,0.2" as LLM, grammar and readability weights
func parseWeights(raw string) (scorer.Weights, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return scorer.Weights{}, fmt.Errorf("%w: --weights needs three comma separated values, got %q", scorer.ErrInvalidConfig, raw)
	}

	values := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return scorer.Weights{}, fmt.Errorf("%w: invalid weight %q: %v", scorer.ErrInvalidConfig, p, err)
		}
		values[i] = v
	}

	w := scorer.Weights{Judgment: values[0], Grammar: values[1], Readability: values[2]}
	return w, w.Validate()
}
