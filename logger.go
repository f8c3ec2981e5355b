package vecquery

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with query-layer context.
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

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", id),
	}
}

// LogMaterialize logs one log materialization.
func (l *Logger) LogMaterialize(ctx context.Context, batchLen, materialized int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "materialize failed",
			"batch_len", batchLen,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "materialize completed",
			"batch_len", batchLen,
			"materialized", materialized,
		)
	}
}

// LogFilter logs a filter operation.
func (l *Logger) LogFilter(ctx context.Context, logMatches uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "filter failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "filter completed",
			"log_matches", logMatches,
		)
	}
}

// LogKnn logs a knn operation.
func (l *Logger) LogKnn(ctx context.Context, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "knn failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "knn completed",
			"k", k,
			"results", results,
		)
	}
}
