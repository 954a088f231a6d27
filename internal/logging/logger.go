package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardLogger is the structured logger used across the application.
// Production environments emit JSON; everything else gets console output.
type StandardLogger struct {
	base *zap.Logger
}

// NewStandardLogger creates a logger for the given level and environment.
func NewStandardLogger(level, environment string) *StandardLogger {
	var cfg zap.Config
	if strings.EqualFold(environment, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}
	return &StandardLogger{base: logger}
}

// NewTestLogger wraps an existing zap logger, for use with zaptest/observer.
func NewTestLogger(base *zap.Logger) *StandardLogger {
	return &StandardLogger{base: base}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *StandardLogger) with(fields ...zap.Field) *StandardLogger {
	return &StandardLogger{base: l.base.With(fields...)}
}

func (l *StandardLogger) WithComponent(component string) *StandardLogger {
	return l.with(zap.String("component", component))
}

func (l *StandardLogger) WithOperation(operation string) *StandardLogger {
	return l.with(zap.String("operation", operation))
}

func (l *StandardLogger) WithUserID(userID string) *StandardLogger {
	return l.with(zap.String("user_id", userID))
}

func (l *StandardLogger) WithError(err error) *StandardLogger {
	return l.with(zap.Error(err))
}

func (l *StandardLogger) WithFields(fields map[string]interface{}) *StandardLogger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return l.with(zapFields...)
}

func (l *StandardLogger) Debug(msg string, fields ...zap.Field) { l.base.Debug(msg, fields...) }
func (l *StandardLogger) Info(msg string, fields ...zap.Field)  { l.base.Info(msg, fields...) }
func (l *StandardLogger) Warn(msg string, fields ...zap.Field)  { l.base.Warn(msg, fields...) }
func (l *StandardLogger) Error(msg string, fields ...zap.Field) { l.base.Error(msg, fields...) }

// Sync flushes buffered log entries.
func (l *StandardLogger) Sync() error {
	return l.base.Sync()
}

// Zap exposes the underlying zap logger for libraries that require one.
func (l *StandardLogger) Zap() *zap.Logger {
	return l.base
}
