// Package logging provides structured logging for bzmirror using zerolog.
//
// Terminals get human-readable console output; anything else (CI, cron,
// LOG_FORMAT=json) gets one JSON object per line on stderr.
//
//	log := logging.FromContext(ctx)
//	log.Info().Str("bug", "12345").Msg("Creating mirror issue")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options configures a logger.
type Options struct {
	Level   string    // debug, info, warn, error; empty reads LOG_LEVEL
	Format  string    // auto, console, json; empty reads LOG_FORMAT
	Verbose bool      // forces debug level
	Quiet   bool      // forces error level
	Out     io.Writer // defaults to os.Stderr
}

var defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// New builds a logger from options, falling back to the environment.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	format := strings.ToLower(firstNonEmpty(opts.Format, os.Getenv("LOG_FORMAT"), "auto"))
	if format == "console" || (format == "auto" && isTerminal(out)) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}

	level := parseLevel(firstNonEmpty(opts.Level, os.Getenv("LOG_LEVEL")))
	switch {
	case opts.Verbose:
		level = zerolog.DebugLevel
	case opts.Quiet:
		level = zerolog.ErrorLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
}

type contextKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the context's logger, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 - fd fits in int
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
