package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, cfg GormLoggerConfig) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, cfg), logs
}

func TestGormLogger_LevelFiltering(t *testing.T) {
	l, logs := newObservedGorm(gormlogger.Warn, DefaultGormLoggerConfig())
	ctx := context.Background()

	l.Info(ctx, "info %d", 1)
	l.Warn(ctx, "warn %d", 2)
	l.Error(ctx, "error %d", 3)
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"warn 2", "error 3"}, msgs)

	info := l.LogMode(gormlogger.Info)
	info.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	require.Equal(t, 1, logs.FilterMessage("sql").Len())
	assert.Equal(t, "SELECT 1", logs.FilterMessage("sql").All()[0].ContextMap()["sql"])
}

func TestGormLogger_SlowQueryCarriesRequestID(t *testing.T) {
	l, logs := newObservedGorm(gormlogger.Warn, GormLoggerConfig{SlowThreshold: time.Millisecond, IgnoreRecordNotFoundError: true})
	ctx := ContextWithRequestID(context.Background(), "req-123")

	l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT * FROM orders", 3 }, nil)

	slow := logs.FilterMessage("slow sql").All()
	require.Len(t, slow, 1)
	assert.Equal(t, "req-123", slow[0].ContextMap()["request_id"])
}

func TestGormLogger_RecordNotFound(t *testing.T) {
	l, logs := newObservedGorm(gormlogger.Error, DefaultGormLoggerConfig())
	ctx := context.Background()

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT", 0 }, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT", 0 }, errors.New("duplicate"))
	assert.Equal(t, 1, logs.FilterMessage("sql failed").Len())
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
}
