package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New creates a new zerolog logger based on config.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger that writes to out.
func NewWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	output := out

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	level := parseLevel(cfg.Level)

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// WithRequest returns ctx carrying a child of l annotated with the request
// and user IDs. Empty values are omitted.
func WithRequest(ctx context.Context, l zerolog.Logger, requestID, userID string) context.Context {
	c := l.With()
	if requestID != "" {
		c = c.Str("request_id", requestID)
	}
	if userID != "" {
		c = c.Str("user_id", userID)
	}
	child := c.Logger()
	return child.WithContext(ctx)
}

// WithUser adds user_id to the logger already stored in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	l := zerolog.Ctx(ctx).With().Str("user_id", userID).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the default context
// logger when there is none.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
