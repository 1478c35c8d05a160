package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It is usable before Init so tests and
// library code never write through a nil writer.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the global logger with the service name and minimum level.
// An unknown level falls back to info.
func Init(serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.TimestampFieldName = "ts"

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	Logger = zerolog.New(os.Stdout).Level(lvl).With().
		Timestamp().
		Str("service_name", serviceName).
		Logger()
}

// WithRun returns a context carrying a child logger tagged with the run id.
func WithRun(ctx context.Context, runID string) context.Context {
	l := Logger.With().Str("run_id", runID).Logger()
	return l.WithContext(ctx)
}

// Ctx returns the logger attached to ctx, or the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &Logger
}
