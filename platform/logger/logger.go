// Package logger provides the structured logger the whole service shares.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with helpers for the log lines every component
// writes the same way.
type Logger struct {
	*slog.Logger
}

// New creates a logger for the environment. Development gets a readable
// text handler at debug level; everything else logs JSON at info level.
func New(env string) *Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
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

// WithRequestID returns a logger with the request ID attached to every line.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs one served request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// AuthEvent logs a login attempt. Failures carry the reason; the HTTP
// response deliberately does not.
func (l *Logger) AuthEvent(event, email string, success bool, reason string) {
	if success {
		l.Info("auth_event",
			slog.String("event", event),
			slog.String("email", email),
			slog.Bool("success", success),
		)
		return
	}
	l.Warn("auth_event",
		slog.String("event", event),
		slog.String("email", email),
		slog.Bool("success", success),
		slog.String("reason", reason),
	)
}

// NotificationDispatch logs the outcome of one notification dispatch attempt.
func (l *Logger) NotificationDispatch(notificationType string, measurementID, recipientID int64, result string) {
	l.Info("notification_dispatch",
		slog.String("type", notificationType),
		slog.Int64("measurement_id", measurementID),
		slog.Int64("recipient_id", recipientID),
		slog.String("result", result),
	)
}

// RateLimitExceeded logs a rejected request.
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
