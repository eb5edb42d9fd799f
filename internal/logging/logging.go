// Package logging provides the structured logger shared by every command in
// this module, following the level/environment convention the rest of the
// corpus uses around slog.
package logging

import (
	"errors"
	"log/slog"
	"os"
	"strings"
)

// Config selects a logger's verbosity and output encoding.
type Config struct {
	Level       string // debug, info, warn, error
	Environment string // dev, prod
}

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("logging: invalid level " + level)
	}
}

// New builds a *slog.Logger: JSON to stdout in prod, human-readable text
// everywhere else.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(cfg.Environment) == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
