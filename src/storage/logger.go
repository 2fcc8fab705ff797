package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger 日志文件，实现 io.Writer，作为 slog 的输出之一
type Logger struct {
	filename string     // 日志文件路径
	file     *os.File   // 日志文件句柄
	mu       sync.Mutex // 互斥锁，保证并发安全
}

// NewLogger 创建新的日志文件
// 参数:
//
//	filename: 日志文件路径
//
// 返回值:
//
//	*Logger: 日志文件实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	// 打开或创建日志文件，权限设置为0644
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filename: filename,
		file:     file,
	}, nil
}

// NewSlog 创建 JSON 格式的 slog.Logger，同时写入所有 writers
func NewSlog(level slog.Level, writers ...io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// Write 实现 io.Writer
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, os.ErrClosed
	}
	return l.file.Write(p)
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开日志文件，用于外部 logrotate 之后(SIGHUP)
// 参数：
// filename：新文件的路径，为空时沿用原路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if filename == "" {
		filename = l.filename
	}

	// 关闭旧文件
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}

	// 重新打开
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.filename = filename
	l.file = file
	return nil
}

// CheckRotate 文件超过 maxSize 字节时轮转，返回是否发生了轮转
func (l *Logger) CheckRotate(maxSize int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return false, os.ErrClosed
	}
	info, err := l.file.Stat()
	if err != nil {
		return false, err
	}

	if info.Size() <= maxSize {
		return false, nil
	}
	return true, l.rotateLog()
}

// rotateLog 把当前文件改名为 name.20060102150405.ext 并新建文件，调用方持有锁
func (l *Logger) rotateLog() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	// 改名失败时继续追加写原文件
	renameErr := os.Rename(l.filename, rotatedName(l.filename, time.Now()))

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Join(renameErr, err)
	}
	l.file = file
	if renameErr != nil {
		return fmt.Errorf("rotate log: %w", renameErr)
	}
	return nil
}

func rotatedName(filename string, t time.Time) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s.%s%s", base, t.Format("20060102150405"), ext)
}
