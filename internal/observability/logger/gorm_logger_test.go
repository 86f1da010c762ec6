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

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestGormLogger_MasksContactsInSlowQueries(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})

	sql := `UPDATE "contracts" SET user_id = 'u-1' WHERE tenant_phone = '010-1234-5678' OR tenant_email = 'kim@example.com'`
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return sql, 2 }, nil)

	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	logged := fields["sql"].(string)
	assert.NotContains(t, logged, "1234")
	assert.NotContains(t, logged, "kim@example.com")
	assert.Contains(t, logged, "010****5678")
	assert.Contains(t, logged, "k****@example.com")
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, "contracts", fields["table"])
	assert.EqualValues(t, 2, fields["rows_affected"])
}

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT * FROM rooms", 0 }, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT * FROM sms_logs", -1 }, errors.New("boom"))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "sms_logs", entries[0].ContextMap()["table"])
	assert.NotContains(t, entries[0].ContextMap(), "rows_affected")
}

func TestGormLogger_LogModeDoesNotMutateOriginal(t *testing.T) {
	logs := observeGlobal(t)
	base := NewGormLogger(DefaultGormLoggerConfig())

	silent := base.LogMode(gormlogger.Silent)
	silent.Error(context.Background(), "hidden")
	base.Error(context.Background(), "visible")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "visible", logs.All()[0].Message)
}
