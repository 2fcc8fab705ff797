package config

import (
	"RetailInsight/src/processor"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadConfigs(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{
		"data_file": "data/retail.csv",
		"delimiter": ";",
		"log_max_size": "1 * 1024",
		"refresh_interval": "30s",
		"watch": true
	}`)
	writeJSON(t, dir, "filter.json", `{"from": "2023-01-01", "categories": ["Clothing"]}`)

	cfg, fcfg, err := loadConfigs(dir, "config.json", "filter.json")
	require.NoError(t, err)

	assert.Equal(t, "data/retail.csv", cfg.DataFile)
	assert.Equal(t, ';', cfg.DelimiterRune())
	assert.True(t, cfg.Watch)
	assert.Equal(t, Duration(30*time.Second), cfg.RefreshInterval)
	assert.Equal(t, "app.log", cfg.LogName)
	assert.Equal(t, "info", cfg.LogLevel)

	size, err := cfg.MaxLogBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), size)

	assert.Equal(t, "2023-01-01", fcfg.From)
	assert.Empty(t, fcfg.To)
	assert.Equal(t, []string{"Clothing"}, fcfg.Categories)
	assert.Nil(t, fcfg.Genders)
}

func TestLoadConfigsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, _, err := loadConfigs(dir, "config.json", "filter.json")
	assert.ErrorIs(t, err, os.ErrNotExist)

	// 过滤配置可以不存在
	writeJSON(t, dir, "config.json", `{"data_file": "retail.xlsx"}`)
	cfg, fcfg, err := loadConfigs(dir, "config.json", "filter.json")
	require.NoError(t, err)
	assert.Equal(t, "retail.xlsx", cfg.DataFile)
	assert.Equal(t, &FilterConfig{}, fcfg)
}

func TestLoadConfigsEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{"data_file": "retail.csv", "refresh_interval": "30s"}`)
	writeJSON(t, dir, "filter.json", `{"genders": ["Male"]}`)

	t.Setenv("RETAIL_DATA_FILE", "override.csv")
	t.Setenv("RETAIL_REFRESH_INTERVAL", "2m")
	t.Setenv("RETAIL_LOG_LEVEL", "debug")
	t.Setenv("RETAIL_FILTER_GENDERS", "Female,Male")

	cfg, fcfg, err := loadConfigs(dir, "config.json", "filter.json")
	require.NoError(t, err)
	assert.Equal(t, "override.csv", cfg.DataFile)
	assert.Equal(t, Duration(2*time.Minute), cfg.RefreshInterval)
	assert.Equal(t, []string{"Female", "Male"}, fcfg.Genders)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())
}

func TestLoadConfigsDotEnv(t *testing.T) {
	// 登记清理，测试结束后移除 .env 写入的变量
	t.Setenv("RETAIL_SHOW_ROWS", "")
	require.NoError(t, os.Unsetenv("RETAIL_SHOW_ROWS"))

	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{"data_file": "retail.csv"}`)
	writeJSON(t, dir, ".env", "RETAIL_SHOW_ROWS=5\n")

	cfg, _, err := loadConfigs(dir, "config.json", "filter.json")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ShowRows)
}

func TestLoadConfigsReportsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{
		"delimiter": ";;",
		"log_level": "loud",
		"log_max_size": "ten megabytes",
		"show_rows": -1
	}`)
	writeJSON(t, dir, "filter.json", `{"from": "2023-02-01", "to": "2023-01-01"}`)

	_, _, err := loadConfigs(dir, "config.json", "filter.json")
	require.Error(t, err)
	for _, field := range []string{"data_file", "delimiter", "log_level", "log_max_size", "show_rows", "filter.from"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestLoadConfigsBadJSON(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{"data_file": `)
	writeJSON(t, dir, "filter.json", `{"categories": "Clothing"}`)

	_, _, err := loadConfigs(dir, "config.json", "filter.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析Config失败")
	assert.Contains(t, err.Error(), "解析FilterConfig失败")
}

func TestFilterParams(t *testing.T) {
	defaults := processor.Params{
		From:       civil.Date{Year: 2023, Month: 1, Day: 1},
		To:         civil.Date{Year: 2023, Month: 12, Day: 31},
		Categories: []string{"Beauty", "Clothing", "Electronics"},
		Genders:    []string{"Male", "Female"},
	}

	p, err := (&FilterConfig{}).Params(defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, p)

	p, err = (&FilterConfig{To: "2023-06-30", Categories: []string{}}).Params(defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults.From, p.From)
	assert.Equal(t, civil.Date{Year: 2023, Month: 6, Day: 30}, p.To)
	assert.Empty(t, p.Categories)
	assert.Equal(t, defaults.Genders, p.Genders)

	_, err = (&FilterConfig{From: "yesterday"}).Params(defaults)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1h30m"`), &d))
	assert.Equal(t, Duration(90*time.Minute), d)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1h30m0s"`, string(data))
	assert.Equal(t, "@every 1h30m0s", d.CronSpec())

	assert.Error(t, d.Decode("soon"))
}
