package main

import (
	"RetailInsight/src/config"
	"RetailInsight/src/datapush"
	"RetailInsight/src/datasource"
	"RetailInsight/src/datasource/file"
	"RetailInsight/src/processor"
	"RetailInsight/src/storage"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	filterJsonFile := "filter.json"
	cfg, fcfg, err := config.LoadConfig(jsonFolder, jsonFile, filterJsonFile)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	level, maxSize, err := logSettings(cfg)
	if err != nil {
		log.Fatal("Invalid log settings: ", err)
	}
	slog.SetDefault(storage.NewSlog(level, os.Stderr, logger))

	d := newDashboardApp(cfg, fcfg, os.Stdout)
	if err := d.refresh(); err != nil {
		slog.Error("dashboard refresh failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, userMessage(err))
		logger.Close()
		os.Exit(1)
	}

	if !cfg.Watch {
		logger.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 数据文件变化时立即刷新
	monitor, err := file.NewFileMonitor(cfg.DataFile)
	if err != nil {
		slog.Error("创建文件监听失败", slog.String("error", err.Error()))
		logger.Close()
		os.Exit(1)
	}
	defer monitor.Close()
	go func() {
		err := monitor.Watch(ctx, func(path string) {
			slog.Info("data file changed", slog.String("source", path))
			d.cache.Invalidate(path)
			d.refreshAndLog()
		})
		if err != nil {
			slog.Error("文件监听中断", slog.String("error", err.Error()))
		}
	}()

	// 设置定时任务：定时刷新 + 日志轮转检查
	cronSpec := cfg.RefreshInterval.CronSpec()
	c := cron.New()
	err = c.AddFunc(cronSpec, func() {
		slog.Debug("开始定时刷新", slog.String("spec", cronSpec))
		d.refreshAndLog()
		if _, err := logger.CheckRotate(maxSize); err != nil {
			slog.Error("日志轮转失败", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		slog.Error("创建定时任务失败", slog.String("error", err.Error()))
		logger.Close()
		os.Exit(1)
	}

	// 启动定时任务
	c.Start()
	defer c.Stop()

	slog.Info("看板监控已启动，按Ctrl+C退出",
		slog.String("source", cfg.DataFile),
		slog.String("interval", time.Duration(cfg.RefreshInterval).String()))
	waitForShutdown(logger, cancel)
}

// logSettings 解析日志级别和轮转阈值
func logSettings(cfg *config.Config) (slog.Level, int64, error) {
	level, err := cfg.Level()
	if err != nil {
		return 0, 0, fmt.Errorf("log_level: %w", err)
	}
	maxSize, err := cfg.MaxLogBytes()
	if err != nil {
		return 0, 0, fmt.Errorf("log_max_size: %w", err)
	}
	return level, maxSize, nil
}

// dashboardApp 一次刷新：缓存取数 → 过滤 → 聚合 → 渲染
type dashboardApp struct {
	cfg       *config.Config
	filter    *config.FilterConfig
	cache     *storage.DatasetCache
	dashboard datapush.Dashboard
	out       io.Writer
	mu        sync.Mutex
}

func newDashboardApp(cfg *config.Config, fcfg *config.FilterConfig, out io.Writer) *dashboardApp {
	opts := file.Options{
		SheetName: cfg.SheetName,
		Delimiter: cfg.DelimiterRune(),
		Encoding:  cfg.Encoding,
	}
	return &dashboardApp{
		cfg:    cfg,
		filter: fcfg,
		cache: storage.NewDatasetCache(func(path string) (processor.RecordSet, error) {
			return file.LoadDerived(path, opts)
		}),
		out: out,
	}
}

func (d *dashboardApp) refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t1 := time.Now()
	rs, err := d.cache.Get(d.cfg.DataFile)
	if err != nil {
		return err
	}

	defaults, err := processor.DefaultParams(rs)
	if err != nil {
		return err
	}
	p, err := d.filter.Params(defaults)
	if err != nil {
		return err
	}
	view := processor.Filter(rs, p)

	data, err := datapush.BuildDashboardData(d.cfg.DataFile, view, p, d.cfg.ShowRows)
	if err != nil {
		return err
	}
	if err := d.dashboard.Render(d.out, data); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}

	slog.Info("dashboard rendered",
		slog.String("source", d.cfg.DataFile),
		slog.Int("rows", rs.Len()),
		slog.Int("matched", view.Len()),
		slog.Duration("duration", time.Since(t1)))
	return nil
}

// refreshAndLog 监听模式下刷新失败只记录，不退出
func (d *dashboardApp) refreshAndLog() {
	if err := d.refresh(); err != nil {
		slog.Error("dashboard refresh failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, userMessage(err))
	}
}

// userMessage 面向用户的单行错误提示
func userMessage(err error) string {
	switch {
	case datasource.IsSourceError(err):
		return fmt.Sprintf("Unable to read transaction data: %v", err)
	case datasource.IsSchemaError(err):
		return fmt.Sprintf("Transaction data is malformed: %v", err)
	default:
		return fmt.Sprintf("Dashboard failed: %v", err)
	}
}

// waitForShutdown SIGINT/SIGTERM 退出，SIGHUP 重新打开日志文件(配合外部 logrotate)
func waitForShutdown(logger *storage.Logger, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := logger.Reopen(""); err != nil {
				slog.Error("重新打开日志失败", slog.String("error", err.Error()))
			}
			continue
		}
		slog.Info("Received signal: " + sig.String() + ", shutting down...")
		cancel()
		logger.Close()
		return
	}
}
