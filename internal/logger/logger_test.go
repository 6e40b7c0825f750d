package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/figurine-hub/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNew_FileOutput 测试日志写入轮转文件
func TestNew_FileOutput(t *testing.T) {
	dir := t.TempDir()
	l, err := New(&config.LogConfig{
		Level:  "debug",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:     dir,
			Filename: "test.log",
			MaxSize:  1,
		},
	})
	require.NoError(t, err)

	l.Info("hello")
	l.Error("boom")
	_ = l.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	errData, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errData), "boom")
	assert.NotContains(t, string(errData), "hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("unknown"))
}

// TestLogBindingEvent 测试绑定事件字段
func TestLogBindingEvent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	characterID := "char-1"
	LogBindingEvent(l, "BIND", "user-1", "fig-1", &characterID)
	LogBindingEvent(l, "UNBIND", "user-1", "fig-1", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "char-1", entries[0].ContextMap()["character_id"])
	_, ok := entries[1].ContextMap()["character_id"]
	assert.False(t, ok)
}

// TestLogRequest 测试按状态码选择日志级别
func TestLogRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	LogRequest(l, "GET", "/health", 200, 0, "127.0.0.1")
	LogRequest(l, "POST", "/api/v1/figurines/bind", 409, 0, "127.0.0.1")
	LogRequest(l, "POST", "/api/v1/figurines/bind", 500, 0, "127.0.0.1")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
