package regiongrow

import (
	"context"
	"image"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with segmentation-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithBlock adds the block index and rectangle to the logger.
func (l *Logger) WithBlock(index int, rect image.Rectangle) *Logger {
	return &Logger{
		Logger: l.Logger.With("block", index, "rect", rect.String()),
	}
}

// WithRun adds a run identifier to the logger.
func (l *Logger) WithRun(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", id),
	}
}

// LogPass logs one merge pass.
func (l *Logger) LogPass(ctx context.Context, pass int, threshold float64, merged, alive int) {
	l.DebugContext(ctx, "merge pass completed",
		"pass", pass,
		"threshold", threshold,
		"merged", merged,
		"alive", alive,
	)
}

// LogAbsorption logs one small-segment absorption pass.
func (l *Logger) LogAbsorption(ctx context.Context, pass, merged, alive int) {
	l.DebugContext(ctx, "absorption pass completed",
		"pass", pass,
		"merged", merged,
		"alive", alive,
	)
}

// LogExecute logs the outcome of a strategy run.
func (l *Logger) LogExecute(ctx context.Context, rows, cols, segments int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segmentation failed",
			"rows", rows,
			"cols", cols,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "segmentation completed",
			"rows", rows,
			"cols", cols,
			"segments", segments,
			"duration", duration,
		)
	}
}

// LogBlock logs the outcome of one block of a Segmenter run.
func (l *Logger) LogBlock(ctx context.Context, segments int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "block failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "block completed",
			"segments", segments,
		)
	}
}
