package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers ensures loggers travel through the context with names and fields.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "controller")
	ctx = WithKV(ctx, "sensor", "door/front")
	ctx = WithFields(ctx, zap.String("actor", "o.shokin@desk"))

	InfoKV(ctx, "Sensor changed", "active", true)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "controller", entries[0].LoggerName)
	require.Equal(t, "Sensor changed", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "door/front", fields["sensor"])
	require.Equal(t, "o.shokin@desk", fields["actor"])
	require.Equal(t, true, fields["active"])
}
