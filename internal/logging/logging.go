// Package logging configures the process-wide zerolog logger.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const runIDKey contextKey = "run_id"

const milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Init configures the global logger to write to w at the given level. An
// empty level falls back to LOG_LEVEL and then to info. A nil w writes to
// stderr.
func Init(level string, w io.Writer) {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if w == nil {
		w = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: milliTimeFormat,
		NoColor:    os.Getenv("NO_COLOR") != "" || w != os.Stderr,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Get returns the global logger instance.
func Get() zerolog.Logger {
	return log.Logger
}

// WithRunID returns a new context carrying the given run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run ID from context, or empty string.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// ForRun returns the global logger enriched with the run ID from context.
func ForRun(ctx context.Context) zerolog.Logger {
	id := RunIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("run_id", id).Logger()
}
