// Package config loads draft-ranker settings.
//
// Configuration precedence (highest to lowest):
//  1. Command line flags that were set explicitly
//  2. Environment variables (DRAFTRANK_MODEL, DRAFTRANK_CACHE__BACKEND, ...)
//  3. YAML config file given with --config
//  4. Defaults
//
// Environment variables drop the DRAFTRANK_ prefix, are lowercased, and use a
// double underscore for nesting:
//
//	DRAFTRANK_MODEL              -> model
//	DRAFTRANK_CACHE__BACKEND     -> cache.backend
//	DRAFTRANK_OPENAI__BASE_URL   -> openai.base_url
//
// The OpenAI key is read from OPENAI_API_KEY, as the OpenAI tooling does.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

// EnvPrefix is the prefix of every draft-ranker environment variable
const EnvPrefix = "DRAFTRANK_"

// APIKeyEnv holds the OpenAI API key
const APIKeyEnv = "OPENAI_API_KEY"

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Cache backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the complete application configuration
type Config struct {
	Folder      string         `koanf:"folder"`
	Exclude     []string       `koanf:"exclude"`
	Extensions  []string       `koanf:"extensions"`
	Weights     scorer.Weights `koanf:"weights"`
	Model       string         `koanf:"model"`
	Format      string         `koanf:"format"`
	CSVPath     string         `koanf:"csv"`
	PromptFile  string         `koanf:"prompt_file"`
	Concurrency int            `koanf:"concurrency"`
	MetricsFile string         `koanf:"metrics_file"`
	NoProgress  bool           `koanf:"no_progress"`
	Cache       CacheConfig    `koanf:"cache"`
	Grammar     GrammarConfig  `koanf:"grammar"`
	OpenAI      OpenAIConfig   `koanf:"openai"`
	Log         LogConfig      `koanf:"log"`
}

// CacheConfig selects where and how records are cached
type CacheConfig struct {
	Backend  string `koanf:"backend"`  // file or sqlite
	Dir      string `koanf:"dir"`      // defaults to <folder>/.cache_edit_scores
	Identity string `koanf:"identity"` // stem or content
	Reweight bool   `koanf:"reweight"` // recompute cached composites with current weights
}

// GrammarConfig configures the LanguageTool checker
type GrammarConfig struct {
	URL          string        `koanf:"url"`
	Language     string        `koanf:"language"`
	OnError      string        `koanf:"on_error"` // abort or skip
	Timeout      time.Duration `koanf:"timeout"`
	CheckOnStart bool          `koanf:"check_on_start"`
}

// OpenAIConfig configures the judgment client
type OpenAIConfig struct {
	APIKey         string        `koanf:"-"`
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	Retry          RetryConfig   `koanf:"retry"`
	CircuitBreaker bool          `koanf:"circuit_breaker"`
}

// RetryConfig configures optional judge retries
type RetryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxAttempts  int           `koanf:"max_attempts"`
	Strategy     string        `koanf:"strategy"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

// Default returns the built-in configuration
func Default() Config {
	retry := scorer.DefaultRetryConfig()
	return Config{
		Extensions:  []string{".md"},
		Weights:     scorer.DefaultWeights(),
		Model:       scorer.DefaultModel,
		Format:      FormatTable,
		Concurrency: 1,
		Cache: CacheConfig{
			Backend:  BackendFile,
			Identity: scorer.IdentityStem,
		},
		Grammar: GrammarConfig{
			URL:          "https://api.languagetool.org",
			Language:     "en-US",
			OnError:      string(scorer.GrammarErrorAbort),
			Timeout:      60 * time.Second,
			CheckOnStart: true,
		},
		OpenAI: OpenAIConfig{
			Retry: RetryConfig{
				MaxAttempts:  retry.MaxAttempts,
				Strategy:     string(retry.Strategy),
				InitialDelay: retry.InitialDelay,
				MaxDelay:     retry.MaxDelay,
			},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load layers the YAML file at path (optional) and DRAFTRANK_ environment
// variables over the defaults
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	// A comma separated env value arrives as one string
	if raw := os.Getenv(EnvPrefix + "EXCLUDE"); raw != "" {
		cfg.Exclude = splitList(raw)
	}
	if raw := os.Getenv(EnvPrefix + "EXTENSIONS"); raw != "" {
		cfg.Extensions = splitList(raw)
	}

	cfg.OpenAI.APIKey = os.Getenv(APIKeyEnv)
	return cfg, nil
}

// envKey maps DRAFTRANK_CACHE__BACKEND to cache.backend
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks values that do not depend on external services
func (c Config) Validate() error {
	if c.Folder == "" {
		return fmt.Errorf("%w: folder is required", scorer.ErrInvalidConfig)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	switch c.Format {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("%w: unknown output format %q", scorer.ErrInvalidConfig, c.Format)
	}
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown cache backend %q", scorer.ErrInvalidConfig, c.Cache.Backend)
	}
	if _, err := scorer.IdentityByName(c.Cache.Identity); err != nil {
		return err
	}
	switch scorer.GrammarErrorPolicy(c.Grammar.OnError) {
	case scorer.GrammarErrorAbort, scorer.GrammarErrorSkip:
	default:
		return fmt.Errorf("%w: %q", scorer.ErrUnknownPolicy, c.Grammar.OnError)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", scorer.ErrInvalidConfig)
	}
	return nil
}

// CacheDir returns the configured cache directory or the default inside Folder
func (c Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return strings.TrimRight(c.Folder, string(os.PathSeparator)) + string(os.PathSeparator) + scorer.CacheDirName
}

// ScorerConfig converts the OpenAI section into a scorer.Config
func (c Config) ScorerConfig(promptText string) scorer.Config {
	cfg := scorer.NewDefaultConfig(c.OpenAI.APIKey).
		WithModel(c.Model).
		WithBaseURL(c.OpenAI.BaseURL).
		WithTimeout(c.OpenAI.Timeout).
		WithPromptTemplate(promptText)

	if c.OpenAI.Retry.Enabled {
		cfg = cfg.WithRetryConfig(&scorer.RetryConfig{
			MaxAttempts:  c.OpenAI.Retry.MaxAttempts,
			Strategy:     scorer.RetryStrategy(c.OpenAI.Retry.Strategy),
			InitialDelay: c.OpenAI.Retry.InitialDelay,
			MaxDelay:     c.OpenAI.Retry.MaxDelay,
		})
	}
	if c.OpenAI.CircuitBreaker {
		cfg = cfg.WithCircuitBreaker()
	}
	return cfg
}
