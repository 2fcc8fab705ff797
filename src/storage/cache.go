package storage

import (
	"RetailInsight/src/datasource"
	"RetailInsight/src/processor"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LoaderFunc 读取并派生数据，缓存未命中时调用
type LoaderFunc func(path string) (processor.RecordSet, error)

// SourceIdentity 数据源标识：路径+大小+修改时间，任意一项变化即视为新数据
type SourceIdentity struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ID 标识的 md5 摘要
func (s SourceIdentity) ID() string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%d|%d", s.Path, s.Size, s.ModTime.UnixNano())))
	return hex.EncodeToString(sum[:])
}

// Identify 获取文件的当前标识
func Identify(path string) (SourceIdentity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return SourceIdentity{}, datasource.NewSourceError(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return SourceIdentity{}, datasource.NewSourceError(path, err)
	}
	return SourceIdentity{Path: abs, Size: info.Size(), ModTime: info.ModTime()}, nil
}

type cacheEntry struct {
	id string
	rs processor.RecordSet
}

// DatasetCache 按数据源标识缓存已派生的数据集
// 同一份文件只加载一次；文件内容变化后下一次 Get 重新加载
type DatasetCache struct {
	load    LoaderFunc
	entries map[string]cacheEntry // key 为绝对路径
	mu      sync.RWMutex
	loads   int
}

func NewDatasetCache(load LoaderFunc) *DatasetCache {
	return &DatasetCache{
		load:    load,
		entries: make(map[string]cacheEntry),
	}
}

// Get 返回数据集，命中时不读文件内容
func (c *DatasetCache) Get(path string) (processor.RecordSet, error) {
	ident, err := Identify(path)
	if err != nil {
		return processor.RecordSet{}, err
	}
	id := ident.ID()

	c.mu.RLock()
	entry, ok := c.entries[ident.Path]
	c.mu.RUnlock()
	if ok && entry.id == id {
		return entry.rs, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 等锁期间可能已被其他调用加载
	if entry, ok := c.entries[ident.Path]; ok && entry.id == id {
		return entry.rs, nil
	}

	rs, err := c.load(path)
	if err != nil {
		return processor.RecordSet{}, err
	}
	c.entries[ident.Path] = cacheEntry{id: id, rs: rs}
	c.loads++

	slog.Debug("dataset cached",
		slog.String("source", ident.Path),
		slog.String("id", id),
		slog.Int("rows", rs.Len()))
	return rs, nil
}

// Invalidate 丢弃某个文件的缓存
func (c *DatasetCache) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.Lock()
	delete(c.entries, abs)
	c.mu.Unlock()
}

// Loads 实际加载次数
func (c *DatasetCache) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}
