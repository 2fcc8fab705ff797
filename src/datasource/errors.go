// errors.go
package datasource

import (
	"errors"
	"fmt"
)

// ErrMissingColumn 表头中缺少必需列
var ErrMissingColumn = errors.New("required column missing")

// DataSourceError 数据源不存在或无法读取，整个流水线直接终止，不重试
type DataSourceError struct {
	Path string
	Err  error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %q unavailable: %v", e.Path, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// SchemaError 缺列或字段值无法解析
// Row 为数据行号(从1开始，不含表头，空白行不计)，0 表示表头本身的问题
type SchemaError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("schema error in column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("schema error at row %d, column %q, value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// NewSourceError 包装数据源错误
func NewSourceError(path string, err error) error {
	return &DataSourceError{Path: path, Err: err}
}

// NewSchemaError 包装字段级别的解析错误
func NewSchemaError(row int, column, value string, err error) error {
	return &SchemaError{Row: row, Column: column, Value: value, Err: err}
}

// MissingColumn 表头缺列
func MissingColumn(column string) error {
	return &SchemaError{Column: column, Err: ErrMissingColumn}
}

// IsSourceError 判断错误链中是否有 DataSourceError
func IsSourceError(err error) bool {
	var target *DataSourceError
	return errors.As(err, &target)
}

// IsSchemaError 判断错误链中是否有 SchemaError
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}
