package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JohnPlummer/draft-ranker/config"
	"github.com/JohnPlummer/draft-ranker/scorer"
)

// newLogger builds the stderr logger and installs it as the slog default
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("%w: log level %q", scorer.ErrInvalidConfig, cfg.Level)
		}
	} else {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: log format %q", scorer.ErrInvalidConfig, cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
