// reader.go
package file

import (
	"RetailInsight/src/datasource"
	"RetailInsight/src/processor"
	"RetailInsight/src/utils"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options 读取选项
type Options struct {
	SheetName string // xlsx 工作表，为空时取第一个
	Delimiter rune   // csv 分隔符，为 0 时使用逗号
	Encoding  string // csv 字符集，为空时按 UTF-8 处理(自动去掉 BOM)
}

var (
	errUnsupportedFormat = errors.New("unsupported file format")
	errEmptySource       = errors.New("no header row")
	errNotFinite         = errors.New("not a finite number")
	errNegative          = errors.New("must not be negative")
	errNotPositive       = errors.New("must be positive")
)

// columnKind 列的解析方式
type columnKind int

const (
	kindString columnKind = iota
	kindDate
	kindInt
	kindFloat
)

var columnKinds = map[string]columnKind{
	processor.ColTransactionID: kindString,
	processor.ColDate:          kindDate,
	processor.ColCustomerID:    kindString,
	processor.ColGender:        kindString,
	processor.ColAge:           kindInt,
	processor.ColCategory:      kindString,
	processor.ColQuantity:      kindInt,
	processor.ColPrice:         kindFloat,
	processor.ColTotal:         kindFloat,
}

// Load 读取交易文件并把日期列规范化为 YYYY-MM-DD
// 文件不存在或无法读取返回 DataSourceError；缺列或字段无法解析返回 SchemaError
func Load(path string, opts Options) (processor.RecordSet, error) {
	t1 := time.Now()

	if _, err := os.Stat(path); err != nil {
		return processor.RecordSet{}, datasource.NewSourceError(path, err)
	}

	var (
		records [][]string
		serial  bool
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		records, err = ReadCSVFile(path, opts)
	case ".xlsx", ".xlsm":
		records, err = ReadXLSX(path, opts.SheetName)
		serial = true
	default:
		err = datasource.NewSourceError(path, fmt.Errorf("%w: %s", errUnsupportedFormat, filepath.Ext(path)))
	}
	if err != nil {
		return processor.RecordSet{}, err
	}

	df, err := convertRecordsToDataFrame(records, serial)
	if err != nil {
		return processor.RecordSet{}, err
	}

	rs, err := processor.NewRecordSet(df)
	if err != nil {
		return processor.RecordSet{}, err
	}

	slog.Info("transaction file loaded",
		slog.String("source", path),
		slog.Int("rows", rs.Len()),
		slog.Duration("duration", time.Since(t1)))
	return rs, nil
}

// LoadDerived 读取并附加派生列，缓存层包装的就是这个函数
func LoadDerived(path string, opts Options) (processor.RecordSet, error) {
	rs, err := Load(path, opts)
	if err != nil {
		return processor.RecordSet{}, err
	}
	return processor.Derive(rs)
}

// ReadCSVFile 打开并读取 csv 文件
func ReadCSVFile(path string, opts Options) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, datasource.NewSourceError(path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f, opts)
	if err != nil {
		var schemaErr *datasource.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, err
		}
		return nil, datasource.NewSourceError(path, err)
	}
	return records, nil
}

// ReadCSV 按指定字符集解码后读取全部记录
func ReadCSV(r io.Reader, opts Options) ([][]string, error) {
	dec, err := Decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(transform.NewReader(r, dec))
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true

	// 行号与 convertRecordsToDataFrame 一致：表头为 0，空白行不计数
	var records [][]string
	dataRows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				row := 0
				if len(records) > 0 {
					row = dataRows + 1
				}
				return nil, datasource.NewSchemaError(row, "", "", parseErr.Err)
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if len(records) > 0 && !blankRow(record) {
			dataRows++
		}
		records = append(records, record)
	}
	return records, nil
}

// Decoder 根据字符集名称返回解码器，名称遵循 WHATWG 编码标签(gbk, latin1, utf-16le ...)
func Decoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return unicode.BOMOverride(enc.NewDecoder()), nil
}

// ReadXLSX 读取工作表全部行，sheetName 为空时取第一个工作表
// 日期单元格按原始序列号读取，由 convertRecordsToDataFrame 统一转换
func ReadXLSX(filePath, sheetName string) ([][]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, datasource.NewSourceError(filePath, fmt.Errorf("xlsx open file false: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, datasource.NewSourceError(filePath, errors.New("excel文件中没有工作表"))
	}
	if sheetName == "" {
		sheetName = sheets[0]
	}
	if !utils.Contains(sheets, sheetName) {
		return nil, datasource.NewSourceError(filePath, fmt.Errorf("sheet %q not found", sheetName))
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, datasource.NewSourceError(filePath, fmt.Errorf("read sheet %q: %w", sheetName, err))
	}
	return rows, nil
}

// convertRecordsToDataFrame 将表头+数据行转换为类型化的 DataFrame
// serial 为 true 时日期列允许 Excel 序列号
func convertRecordsToDataFrame(records [][]string, serial bool) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, datasource.NewSchemaError(0, "", "", errEmptySource)
	}

	// 表头定位
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		key := utils.NormalizeHeader(name)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	positions := make(map[string]int, len(processor.RequiredColumns))
	for _, col := range processor.RequiredColumns {
		i, ok := index[utils.NormalizeHeader(col)]
		if !ok {
			return dataframe.DataFrame{}, datasource.MissingColumn(col)
		}
		positions[col] = i
	}

	// 准备数据列
	n := len(records) - 1
	strs := make(map[string][]string)
	ints := make(map[string][]int)
	floats := make(map[string][]float64)
	for _, col := range processor.RequiredColumns {
		switch columnKinds[col] {
		case kindInt:
			ints[col] = make([]int, 0, n)
		case kindFloat:
			floats[col] = make([]float64, 0, n)
		default:
			strs[col] = make([]string, 0, n)
		}
	}

	// 填充数据(从第二行开始)，整行为空的跳过
	rowNum := 0
	for _, row := range records[1:] {
		if blankRow(row) {
			continue
		}
		rowNum++
		for _, col := range processor.RequiredColumns {
			raw := cell(row, positions[col])
			switch columnKinds[col] {
			case kindDate:
				d, err := parseDate(raw, serial)
				if err != nil {
					return dataframe.DataFrame{}, datasource.NewSchemaError(rowNum, col, raw, err)
				}
				strs[col] = append(strs[col], d.String())
			case kindInt:
				v, err := strconv.Atoi(raw)
				if err == nil {
					err = checkInt(col, v)
				}
				if err != nil {
					return dataframe.DataFrame{}, datasource.NewSchemaError(rowNum, col, raw, err)
				}
				ints[col] = append(ints[col], v)
			case kindFloat:
				v, err := strconv.ParseFloat(raw, 64)
				if err == nil {
					err = checkAmount(v)
				}
				if err != nil {
					return dataframe.DataFrame{}, datasource.NewSchemaError(rowNum, col, raw, err)
				}
				floats[col] = append(floats[col], v)
			default:
				strs[col] = append(strs[col], raw)
			}
		}
	}

	// 创建Series切片
	seriesList := make([]series.Series, 0, len(processor.RequiredColumns))
	for _, col := range processor.RequiredColumns {
		switch columnKinds[col] {
		case kindInt:
			seriesList = append(seriesList, series.New(ints[col], series.Int, col))
		case kindFloat:
			seriesList = append(seriesList, series.New(floats[col], series.Float, col))
		default:
			seriesList = append(seriesList, series.New(strs[col], series.String, col))
		}
	}

	df := dataframe.New(seriesList...)
	if err := df.Error(); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build dataframe: %w", err)
	}
	return df, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// checkInt 数量必须为正，年龄不能为负
func checkInt(col string, v int) error {
	switch {
	case col == processor.ColQuantity && v <= 0:
		return errNotPositive
	case v < 0:
		return errNegative
	}
	return nil
}

// checkAmount 单价、总额必须是非负有限数
func checkAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errNotFinite
	}
	if v < 0 {
		return errNegative
	}
	return nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseDate 解析 YYYY-MM-DD；带时间部分时只取日期
// serial 为 true 时纯数字按 Excel 日期序列号处理
func parseDate(s string, serial bool) (civil.Date, error) {
	if serial {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			t, err := excelize.ExcelDateToTime(f, false)
			if err != nil {
				return civil.Date{}, err
			}
			return civil.DateOf(t), nil
		}
	}
	if len(s) > 10 && (s[10] == ' ' || s[10] == 'T') {
		dt, err := civil.ParseDateTime(strings.Replace(s, " ", "T", 1))
		if err != nil {
			return civil.Date{}, err
		}
		return dt.Date, nil
	}
	return civil.ParseDate(s)
}
