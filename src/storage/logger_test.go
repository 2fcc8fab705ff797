package storage

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func TestNewSlogWritesJSONToAllWriters(t *testing.T) {
	logger, path := newTestLogger(t)
	var console bytes.Buffer

	log := NewSlog(slog.LevelInfo, &console, logger)
	log.Debug("hidden")
	log.Info("transaction file loaded", slog.String("source", "retail.csv"), slog.Int("rows", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(console.Bytes(), &entry))
	assert.Equal(t, "transaction file loaded", entry["msg"])
	assert.Equal(t, "retail.csv", entry["source"])
	assert.EqualValues(t, 2, entry["rows"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, console.String(), string(data))
	assert.NotContains(t, string(data), "hidden")
}

func TestCheckRotate(t *testing.T) {
	logger, path := newTestLogger(t)

	_, err := logger.Write([]byte(strings.Repeat("x", 64)))
	require.NoError(t, err)

	rotated, err := logger.CheckRotate(1024)
	require.NoError(t, err)
	assert.False(t, rotated)

	rotated, err = logger.CheckRotate(32)
	require.NoError(t, err)
	assert.True(t, rotated)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "app.*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	old, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Len(t, old, 64)

	// 轮转后继续写入新文件
	_, err = logger.Write([]byte("after"))
	require.NoError(t, err)
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "after", string(current))
}

func TestCheckRotateRenameFails(t *testing.T) {
	logger, path := newTestLogger(t)
	_, err := logger.Write([]byte(strings.Repeat("x", 64)))
	require.NoError(t, err)

	// 目标位置被目录占住，改名必然失败
	now := time.Now()
	for d := -time.Second; d <= 2*time.Second; d += time.Second {
		require.NoError(t, os.MkdirAll(rotatedName(path, now.Add(d)), 0755))
	}

	rotated, err := logger.CheckRotate(32)
	assert.True(t, rotated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotate log")

	_, err = logger.Write([]byte("after"))
	require.NoError(t, err)
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 64)+"after", string(current))
}

func TestReopen(t *testing.T) {
	logger, path := newTestLogger(t)
	_, err := logger.Write([]byte("first\n"))
	require.NoError(t, err)

	// 模拟外部 logrotate 把文件移走
	moved := path + ".1"
	require.NoError(t, os.Rename(path, moved))
	require.NoError(t, logger.Reopen(""))

	_, err = logger.Write([]byte("second\n"))
	require.NoError(t, err)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(current))
	old, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(old))
}

func TestWriteAfterClose(t *testing.T) {
	logger, _ := newTestLogger(t)
	require.NoError(t, logger.Close())

	_, err := logger.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = logger.CheckRotate(1)
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, logger.Close())
}

func TestRotatedName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC)
	assert.Equal(t, "logs/app.20240309080706.log", rotatedName("logs/app.log", ts))
	assert.Equal(t, "retail.20240309080706", rotatedName("retail", ts))
}
