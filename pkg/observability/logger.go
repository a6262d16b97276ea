package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLogLevel maps a level name to a logrus level, defaulting to info
func ParseLogLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return logrus.WarnLevel
	case "":
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a JSON logger writing to output (stdout when nil)
func NewLogger(level logrus.Level, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return logger
}

// contextKey is the type for context keys
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger retrieves the logger from context, falling back to the standard logger
func GetLogger(ctx context.Context) logrus.FieldLogger {
	if logger, ok := ctx.Value(LoggerKey).(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}

// FromContext returns the context logger annotated with the request ID
func FromContext(ctx context.Context) logrus.FieldLogger {
	logger := GetLogger(ctx)

	if requestID := GetRequestID(ctx); requestID != "" {
		logger = logger.WithField("request_id", requestID)
	}

	return logger
}
