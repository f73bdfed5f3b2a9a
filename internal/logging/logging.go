// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// TxIDKey is the context key for transaction IDs.
	TxIDKey ContextKey = "tx_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel converts a level name (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat converts a format name (json, text) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	InitLoggerTo(os.Stdout, level, format)
}

// InitLoggerTo is like InitLogger but writes to w.
func InitLoggerTo(w io.Writer, level Level, format Format) {
	defaultLogger = New(w, level, format)
	slog.SetDefault(defaultLogger)
}

// New builds a logger without touching the global one.
func New(w io.Writer, level Level, format Format) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithTxID adds a transaction ID to the context.
func WithTxID(ctx context.Context, txID string) context.Context {
	return context.WithValue(ctx, TxIDKey, txID)
}

// GetTxID retrieves the transaction ID from the context.
func GetTxID(ctx context.Context) string {
	if txID, ok := ctx.Value(TxIDKey).(string); ok {
		return txID
	}
	return ""
}

// Bind returns base (or the global logger when base is nil) with context
// values attached.
func Bind(ctx context.Context, base *slog.Logger) *slog.Logger {
	logger := base
	if logger == nil {
		logger = defaultLogger
	}
	if txID := GetTxID(ctx); txID != "" {
		logger = logger.With("tx_id", txID)
	}
	return logger
}

// Statement logs one executed statement at debug level.
func Statement(ctx context.Context, logger *slog.Logger, db, query string, rowCount int, duration time.Duration, args ...any) {
	allArgs := []any{
		"db", db,
		"query", query,
		"rows", rowCount,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	Bind(ctx, logger).Debug("sql_statement", allArgs...)
}

// BusyRetry logs a statement retried after SQLITE_BUSY.
func BusyRetry(ctx context.Context, logger *slog.Logger, db string, attempt int, delay time.Duration, err error) {
	Bind(ctx, logger).Warn("sql_busy_retry",
		"db", db,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
		"error", err.Error(),
	)
}

// Transaction logs a transaction lifecycle event (begin, commit, rollback).
func Transaction(ctx context.Context, logger *slog.Logger, db, event string, args ...any) {
	allArgs := []any{
		"db", db,
		"event", event,
	}
	allArgs = append(allArgs, args...)
	Bind(ctx, logger).Debug("sql_transaction", allArgs...)
}

// Migration logs a schema migration.
func Migration(ctx context.Context, logger *slog.Logger, db string, dropped, created []string) {
	Bind(ctx, logger).Info("schema_migration",
		"db", db,
		"dropped", dropped,
		"created", created,
	)
}

// Export logs a database export.
func Export(ctx context.Context, logger *slog.Logger, db string, size int, args ...any) {
	allArgs := []any{
		"db", db,
		"bytes", size,
	}
	allArgs = append(allArgs, args...)
	Bind(ctx, logger).Info("db_export", allArgs...)
}
