package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "default config", cfg: DefaultConfig()},
		{name: "console", cfg: &Config{Level: "debug", Format: "console", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("submitted", zap.String(FieldOperation, "Enviar"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"Enviar"`)
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestForCall(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ForCall(zap.New(core), "EstadoDocumento", "tenant-1", "call-1").Info("done")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "EstadoDocumento", fields[FieldOperation])
	assert.Equal(t, "tenant-1", fields[FieldTenantID])
	assert.Equal(t, "call-1", fields[FieldCallID])
}

func TestContext(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	logger := zap.NewExample()
	ctx := WithContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx, fallback))
}

func TestPayload(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	short := []byte("<Envelope/>")
	long := []byte(strings.Repeat("x", maxPayloadLog+100))

	logger.Info("short", Payload("raw", short))
	logger.Info("long", Payload("raw", long))

	entries := logs.All()
	assert.Equal(t, "<Envelope/>", entries[0].ContextMap()["raw"])
	raw := entries[1].ContextMap()["raw"].(string)
	assert.True(t, strings.HasSuffix(raw, "...(truncated)"))
	assert.Len(t, raw, maxPayloadLog+len("...(truncated)"))
	assert.Len(t, long, maxPayloadLog+100, "input must not be modified")
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info)

	sql := func() (string, int64) { return "INSERT INTO t VALUES ('sealed-secret')", 1 }

	gl.Trace(context.Background(), time.Now(), sql, nil)
	gl.Trace(context.Background(), time.Now(), sql, errors.New("constraint failed"))
	gl.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		assert.NotContains(t, e.ContextMap(), "sql")
	}
	assert.Equal(t, "SQL Error", logs.All()[1].Message)

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), sql, nil)
	assert.Equal(t, 2, logs.Len())
}
