package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"order-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNilLoggerSafety(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	assert.NotNil(t, Get())
	FromContext(context.Background(), nil).Info("dropped")
	assert.NoError(t, Sync())
}

func TestInitConsoleAndJSON(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	require.NoError(t, Init(&config.LogConfig{Level: "debug", Output: "stdout"}, "development"))
	Get().Info("development logger initialized")
	_ = Sync()

	require.NoError(t, Init(&config.LogConfig{Level: "info", Format: "json", Output: "stdout"}, "production"))
	Get().Info("production logger initialized", zap.String("env", "production"))
	_ = Sync()
}

func TestFileOutput(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	path := filepath.Join(t.TempDir(), "logs", "orders.log")
	require.NoError(t, Init(&config.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path}, "production"))

	for i := 0; i < 10; i++ {
		Get().Info("log entry", zap.Int("entry", i))
	}
	_ = Sync()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestInitLevel(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	require.NoError(t, Init(&config.LogConfig{Level: "warn", Output: "stdout"}, "production"))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Init(&config.LogConfig{Level: "nonsense", Output: "stdout"}, "production"))
	assert.True(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestRequestIDContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithRequestID(context.Background(), ""))

	FromContext(ctx, base).Info("with id")
	FromContext(context.Background(), base).Info("without id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
