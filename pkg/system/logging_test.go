package system

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerVerbose(t *testing.T) {
	log, err := NewLogger(true)
	require.NoError(t, err)
	require.True(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	_ = log.Sync()
}

func TestNewLoggerQuiet(t *testing.T) {
	log, err := NewLogger(false)
	require.NoError(t, err)
	require.False(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Desugar().Core().Enabled(zapcore.WarnLevel))
}

func TestLoggerOrNop(t *testing.T) {
	require.NotNil(t, LoggerOrNop(nil))

	log := zap.NewNop().Sugar()
	require.Same(t, log, LoggerOrNop(log))
}
