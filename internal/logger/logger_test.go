package logger

import (
	"testing"

	"storecore/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(config.Log{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(config.Log{Level: "warn", Format: "json"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New(config.Log{Level: "loud"})
	require.Error(t, err)
}
