package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// Middleware stores logger in every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// RequestIDMiddleware adds the request ID to the context logger.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger logs the few domain events the server reports.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogAuth logs a login, logout or register attempt. Passwords never reach here.
func (sl *StructuredLogger) LogAuth(ctx context.Context, op, sessionID, username string, err error) {
	fields := NewFields().
		WithOperation(op).
		WithSession(sessionID, username).
		WithError(err).
		WithComponent(ComponentSession)
	fields[FieldSuccess] = err == nil

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	sl.logger.LogWith(ctx, level, "Authentication", fields)
}

// LogTransaction logs a create, edit or delete submitted from the UI.
func (sl *StructuredLogger) LogTransaction(ctx context.Context, op, username, eventID, title, amount string, expense bool) {
	fields := NewFields().
		WithOperation(op).
		WithEvent(eventID, title, amount, expense).
		WithComponent(ComponentForm)
	fields[FieldUsername] = username

	sl.logger.LogWith(ctx, slog.LevelInfo, "Transaction saved", fields)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.logger.LogWith(ctx, slog.LevelError, msg, fields)
}
