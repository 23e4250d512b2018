// Package logging provides structured logging for tally using zerolog.
// Console output is used when stderr is a terminal, JSON otherwise.
//
// Components take a *zerolog.Logger through their options and tag it with
// Component; code that only has a context uses FromContext:
//
//	logger := logging.Component(logging.Default(), "store")
//	logger.Info().Str("key", "tally.records.v1").Int("records", 12).Msg("Restored records")
//
//	ctx := logging.WithLogger(context.Background(), logger)
//	logging.FromContext(ctx).Debug().Msg("Using logger from context")
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var (
	defaultOnce   sync.Once
	defaultMu     sync.RWMutex
	defaultLogger zerolog.Logger
)

// Default returns the process-wide logger. Until SetDefault is called it is
// built from TALLY_LOG_LEVEL and TALLY_LOG_FORMAT.
func Default() *zerolog.Logger {
	defaultOnce.Do(func() {
		cfg := DefaultConfig()
		if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
			cfg.Level = level
		}
		if format := os.Getenv("TALLY_LOG_FORMAT"); format != "" {
			cfg.Format = format
		}
		defaultMu.Lock()
		defaultLogger = NewLoggerFromConfig(cfg)
		defaultMu.Unlock()
	})

	defaultMu.RLock()
	defer defaultMu.RUnlock()
	logger := defaultLogger
	return &logger
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger zerolog.Logger) {
	defaultOnce.Do(func() {})
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// New creates a JSON logger writing to w at info level.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}

// Redirect returns a JSON logger writing to w at the level of logger.
// Interactive views use it to take log lines off the terminal they draw on.
func Redirect(logger *zerolog.Logger, w io.Writer) *zerolog.Logger {
	level := zerolog.InfoLevel
	if logger != nil {
		level = logger.GetLevel()
	}
	redirected := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &redirected
}

// stderrIsTerminal reports whether stderr is an interactive terminal.
func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
