package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	dev := Config(true)
	require.True(t, dev.Development)
	require.Equal(t, "ts", dev.EncoderConfig.TimeKey)
	require.Empty(t, dev.InitialFields)

	prod := Config(false)
	require.False(t, prod.Development)
	require.False(t, prod.DisableStacktrace)
	require.Equal(t, "ts", prod.EncoderConfig.TimeKey)
	require.Equal(t, "botworker", prod.InitialFields["service"])
}

func TestNew(t *testing.T) {
	t.Parallel()

	dev, err := New(true)
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod, err := New(false)
	require.NoError(t, err)
	require.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	require.True(t, prod.Core().Enabled(zapcore.InfoLevel))
}
