// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// RunIDKey is the context key for a reconciliation run ID
	RunIDKey contextKey = "run_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewStderr creates a logger writing to stderr. CLI jobs use this so the
// machine-readable run summary on stdout stays uncontaminated.
func NewStderr(env string) *Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, opts))}
	}

	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, opts))}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and run_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("run_id", runID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithTenant returns a logger scoped to a tenant job.
func (l *Logger) WithTenant(job string, projectID int) *Logger {
	return &Logger{
		Logger: l.With(slog.String("job", job), slog.Int("project_id", projectID)),
	}
}

// RateLimitExceeded logs a client hitting the rate limit
func (l *Logger) RateLimitExceeded(ip, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("ip", ip),
		slog.String("path", path),
	)
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// RemoteCallError logs a failed call against a remote system. The body is
// truncated so one oversized upstream response cannot flood the log.
func (l *Logger) RemoteCallError(system, op, targetID string, status int, body string, err error) {
	attrs := []any{
		slog.String("system", system),
		slog.String("op", op),
		slog.String("target_id", targetID),
		slog.Int("status", status),
		slog.String("body", Truncate(body, 500)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.Error("remote_call_error", attrs...)
}

// SkipRecord logs a per-record skip with its reason code.
func (l *Logger) SkipRecord(clave, reason string, attrs ...any) {
	args := append([]any{slog.String("clave", clave), slog.String("reason", reason)}, attrs...)
	l.Warn("skip_record", args...)
}

// Truncate clamps s to max bytes for log output.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
