package system

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	require.NotNil(t, logger)
	logger.Infow("test message with fields", "key", "value")
}

func TestNewObservedLogger(t *testing.T) {
	logger, logs := NewObservedLogger(zapcore.InfoLevel)
	logger.Debugw("dropped")
	logger.Infow("kept", "port", 8000)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "kept", entry.Message)
	require.EqualValues(t, 8000, entry.ContextMap()["port"])
}
