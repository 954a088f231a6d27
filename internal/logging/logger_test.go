package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestLogger() (*StandardLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewTestLogger(zap.New(core)), logs
}

func TestNewStandardLogger_Basic(t *testing.T) {
	logger := NewStandardLogger("info", "development")
	require.NotNil(t, logger)
	logger.Info("startup")
}

func TestStandardLogger_WithComponent(t *testing.T) {
	logger, logs := setupTestLogger()

	logger.WithComponent("settlement").Info("settled")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "settled", entry.Message)
	assert.Equal(t, "settlement", entry.ContextMap()["component"])
}

func TestStandardLogger_WithUserID(t *testing.T) {
	logger, logs := setupTestLogger()

	logger.WithUserID("user-1").Warn("capital drift healed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "user-1", logs.All()[0].ContextMap()["user_id"])
}

func TestStandardLogger_WithError(t *testing.T) {
	logger, logs := setupTestLogger()

	logger.WithError(errors.New("boom")).Error("query failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestStandardLogger_WithFields(t *testing.T) {
	logger, logs := setupTestLogger()

	logger.WithFields(map[string]interface{}{"trade_id": "t-1", "pnl": 42.5}).Info("trade closed")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", ctx["trade_id"])
	assert.Equal(t, 42.5, ctx["pnl"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}
