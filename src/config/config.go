package config

import (
	"RetailInsight/src/processor"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 环境变量前缀，例如 RETAIL_DATA_FILE、RETAIL_FILTER_CATEGORIES
const (
	EnvPrefix       = "RETAIL"
	FilterEnvPrefix = "RETAIL_FILTER"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataFile  string `json:"data_file" split_words:"true"`  // 交易数据文件(.csv/.xlsx)
	SheetName string `json:"sheet_name" split_words:"true"` // xlsx 工作表，为空取第一个
	Delimiter string `json:"delimiter" split_words:"true"`  // csv 分隔符
	Encoding  string `json:"encoding" split_words:"true"`   // csv 字符集

	LogName    string `json:"log_name" split_words:"true"`
	LogLevel   string `json:"log_level" split_words:"true"`
	LogMaxSize string `json:"log_max_size" split_words:"true"` // 形如 "10 * 1024 * 1024"

	Watch           bool     `json:"watch" split_words:"true"`            // 文件变化时自动刷新看板
	RefreshInterval Duration `json:"refresh_interval" split_words:"true"` // 定时刷新间隔
	ShowRows        int      `json:"show_rows" split_words:"true"`        // 看板末尾显示的明细行数，0 不显示
}

// FilterConfig 看板默认过滤条件
// 字段缺省(nil/空字符串)表示不限制；显式的空列表表示什么都不选
type FilterConfig struct {
	From       string   `json:"from" split_words:"true"`
	To         string   `json:"to" split_words:"true"`
	Categories []string `json:"categories" split_words:"true"`
	Genders    []string `json:"genders" split_words:"true"`
}

var (
	once           sync.Once
	instance       *Config
	filterInstance *FilterConfig
)

// LoadConfig 只加载一次，后续调用返回同一份配置
func LoadConfig(jsonFolder, jsonFile, filterJsonFile string) (*Config, *FilterConfig, error) {
	var err error
	once.Do(func() {
		instance, filterInstance, err = loadConfigs(jsonFolder, jsonFile, filterJsonFile)
	})
	return instance, filterInstance, err
}

// loadConfigs 读取 json 配置，然后依次叠加 .env 和环境变量，最后统一校验
func loadConfigs(jsonFolder, jsonFile, filterJsonFile string) (*Config, *FilterConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	filterFile := filepath.Join(jsonFolder, filterJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 过滤配置可选
	filterData, err := readFile(filterFile)
	if errors.Is(err, os.ErrNotExist) {
		filterData, err = []byte("{}"), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("读取过滤配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	fcfgChan := make(chan *FilterConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseFilterConfig(filterData, fcfgChan, errChan)

	cfg, fcfg, err := waitForResults(cfgChan, fcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	// .env 不会覆盖已经存在的环境变量
	_ = godotenv.Load(filepath.Join(jsonFolder, ".env"))
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, nil, fmt.Errorf("读取环境变量失败: %w", err)
	}
	if err := envconfig.Process(FilterEnvPrefix, fcfg); err != nil {
		return nil, nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	cfg.applyDefaults()
	if err := combineErrors(append(cfg.Validate(), fcfg.Validate()...)); err != nil {
		return nil, nil, err
	}
	return cfg, fcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseFilterConfig(data []byte, resultChan chan<- *FilterConfig, errChan chan<- error) {
	var fcfg FilterConfig
	if err := json.Unmarshal(data, &fcfg); err != nil {
		errChan <- fmt.Errorf("解析FilterConfig失败: %w", err)
		return
	}
	resultChan <- &fcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	fcfgChan <-chan *FilterConfig,
	errChan <-chan error,
) (*Config, *FilterConfig, error) {
	var (
		cfg  *Config
		fcfg *FilterConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
			slog.Debug("Config 配置文件加载完毕")
		case f := <-fcfgChan:
			fcfg = f
			slog.Debug("FilterConfig 配置文件加载完毕")
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || fcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, fcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = Duration(5 * time.Minute)
	}
}

// Validate 返回全部不合法的字段，而不是遇到第一个就停
func (c *Config) Validate() []error {
	var errs []error
	if strings.TrimSpace(c.DataFile) == "" {
		errs = append(errs, errors.New("data_file 不能为空"))
	}
	if utf8.RuneCountInString(c.Delimiter) > 1 {
		errs = append(errs, fmt.Errorf("delimiter 只能是单个字符: %q", c.Delimiter))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := c.MaxLogBytes(); err != nil {
		errs = append(errs, fmt.Errorf("log_max_size: %w", err))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("refresh_interval 不能为负数: %v", time.Duration(c.RefreshInterval)))
	}
	if c.ShowRows < 0 {
		errs = append(errs, fmt.Errorf("show_rows 不能为负数: %d", c.ShowRows))
	}
	return errs
}

// DelimiterRune csv 分隔符，未配置时为 0(读取时按逗号处理)
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// Level 日志级别，支持 debug/info/warn/error
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// MaxLogBytes 解析 "10 * 1024 * 1024" 形式的日志大小上限
func (c *Config) MaxLogBytes() (int64, error) {
	parts := strings.Split(c.LogMaxSize, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", c.LogMaxSize, err)
		}
		if num <= 0 {
			return 0, fmt.Errorf("invalid size %q", c.LogMaxSize)
		}
		result *= num
	}
	return result, nil
}

// Validate 检查日期格式和区间
func (f *FilterConfig) Validate() []error {
	var errs []error
	from, fromErr := parseOptionalDate(f.From)
	if fromErr != nil {
		errs = append(errs, fmt.Errorf("filter.from: %w", fromErr))
	}
	to, toErr := parseOptionalDate(f.To)
	if toErr != nil {
		errs = append(errs, fmt.Errorf("filter.to: %w", toErr))
	}
	if fromErr == nil && toErr == nil && f.From != "" && f.To != "" && from.After(to) {
		errs = append(errs, fmt.Errorf("filter.from %s 晚于 filter.to %s", f.From, f.To))
	}
	return errs
}

// Params 在数据默认参数的基础上套用配置中的限制
func (f *FilterConfig) Params(defaults processor.Params) (processor.Params, error) {
	p := defaults
	if f.From != "" {
		d, err := civil.ParseDate(f.From)
		if err != nil {
			return processor.Params{}, fmt.Errorf("filter.from: %w", err)
		}
		p.From = d
	}
	if f.To != "" {
		d, err := civil.ParseDate(f.To)
		if err != nil {
			return processor.Params{}, fmt.Errorf("filter.to: %w", err)
		}
		p.To = d
	}
	if f.Categories != nil {
		p.Categories = f.Categories
	}
	if f.Genders != nil {
		p.Genders = f.Genders
	}
	return p, nil
}

func parseOptionalDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化，以及从环境变量读取
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Decode 实现 envconfig.Decoder
func (d *Duration) Decode(value string) error {
	dur, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// CronSpec 转换为 cron 的 @every 表达式
func (d Duration) CronSpec() string {
	return fmt.Sprintf("@every %s", time.Duration(d))
}
