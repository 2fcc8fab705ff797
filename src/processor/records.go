// records.go
package processor

import (
	"RetailInsight/src/datasource"
	"RetailInsight/src/utils"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/go-gota/gota/dataframe"
)

// 原始列名，与交易日志表头一致
const (
	ColTransactionID = "Transaction ID"
	ColDate          = "Date"
	ColCustomerID    = "Customer ID"
	ColGender        = "Gender"
	ColAge           = "Age"
	ColCategory      = "Product Category"
	ColQuantity      = "Quantity"
	ColPrice         = "Price per Unit"
	ColTotal         = "Total Amount"
)

// 派生列名
const (
	ColMonth     = "Month"
	ColDayOfWeek = "Day_of_Week"
	ColYearMonth = "Year_Month"
	ColAgeGroup  = "Age Group"
)

// DateLayout 日期列在 DataFrame 中的存储格式，字典序即时间序
const DateLayout = "2006-01-02"

// RequiredColumns 加载时必须存在的列
var RequiredColumns = []string{
	ColTransactionID,
	ColDate,
	ColCustomerID,
	ColGender,
	ColAge,
	ColCategory,
	ColQuantity,
	ColPrice,
	ColTotal,
}

// DerivedColumns Derive 之后追加的列
var DerivedColumns = []string{ColMonth, ColDayOfWeek, ColYearMonth, ColAgeGroup}

// Transaction 一笔销售记录
type Transaction struct {
	TransactionID string
	Date          civil.Date
	CustomerID    string
	Gender        string
	Age           int
	Category      string
	Quantity      int
	PricePerUnit  float64
	TotalAmount   float64

	// 派生字段，未 Derive 时为空
	MonthName string
	DayOfWeek string
	YearMonth string
	AgeGroup  string
}

// RecordSet 保序的交易集合(全集或过滤后的视图)
// 底层 DataFrame 加载后不再修改，所有操作都返回新的 RecordSet
type RecordSet struct {
	df dataframe.DataFrame
}

// NewRecordSet 校验 DataFrame 并包装成 RecordSet
func NewRecordSet(df dataframe.DataFrame) (RecordSet, error) {
	if err := df.Error(); err != nil {
		return RecordSet{}, fmt.Errorf("invalid dataframe: %w", err)
	}
	for _, col := range RequiredColumns {
		if !utils.HasColumn(df, col) {
			return RecordSet{}, datasource.MissingColumn(col)
		}
	}
	return RecordSet{df: df}, nil
}

// Len 行数
func (rs RecordSet) Len() int {
	return rs.df.Nrow()
}

// Empty 是否没有任何行
func (rs RecordSet) Empty() bool {
	return rs.Len() == 0
}

// Frame 返回底层 DataFrame 的副本
func (rs RecordSet) Frame() dataframe.DataFrame {
	if rs.df.Ncol() == 0 {
		return rs.df
	}
	return rs.df.Copy()
}

// Derived 是否已附加全部派生列
func (rs RecordSet) Derived() bool {
	if rs.df.Ncol() == 0 {
		return false
	}
	for _, col := range DerivedColumns {
		if !utils.HasColumn(rs.df, col) {
			return false
		}
	}
	return true
}

// stringCol 取字符串列，空集合返回 nil
func (rs RecordSet) stringCol(col string) []string {
	if rs.Empty() || !utils.HasColumn(rs.df, col) {
		return nil
	}
	return rs.df.Col(col).Records()
}

// floatCol 取数值列
func (rs RecordSet) floatCol(col string) []float64 {
	if rs.Empty() || !utils.HasColumn(rs.df, col) {
		return nil
	}
	return rs.df.Col(col).Float()
}

// intCol 取整数列，无法转换时返回 SchemaError
func (rs RecordSet) intCol(col string) ([]int, error) {
	if rs.Empty() || !utils.HasColumn(rs.df, col) {
		return nil, nil
	}
	s := rs.df.Col(col)
	out := make([]int, s.Len())
	for i := 0; i < s.Len(); i++ {
		v, err := s.Elem(i).Int()
		if err != nil {
			return nil, datasource.NewSchemaError(i+1, col, s.Elem(i).String(), err)
		}
		out[i] = v
	}
	return out, nil
}

// dates 取日期列
func (rs RecordSet) dates() ([]civil.Date, error) {
	raw := rs.stringCol(ColDate)
	out := make([]civil.Date, len(raw))
	for i, s := range raw {
		d, err := civil.ParseDate(s)
		if err != nil {
			return nil, datasource.NewSchemaError(i+1, ColDate, s, err)
		}
		out[i] = d
	}
	return out, nil
}

// Transactions 按原始顺序展开为结构体切片
func (rs RecordSet) Transactions() ([]Transaction, error) {
	if rs.Empty() {
		return nil, nil
	}
	dates, err := rs.dates()
	if err != nil {
		return nil, err
	}
	ages, err := rs.intCol(ColAge)
	if err != nil {
		return nil, err
	}
	quantities, err := rs.intCol(ColQuantity)
	if err != nil {
		return nil, err
	}

	ids := rs.stringCol(ColTransactionID)
	customers := rs.stringCol(ColCustomerID)
	genders := rs.stringCol(ColGender)
	categories := rs.stringCol(ColCategory)
	prices := rs.floatCol(ColPrice)
	totals := rs.floatCol(ColTotal)
	derived := rs.Derived()
	var months, weekdays, yearMonths, ageGroups []string
	if derived {
		months = rs.stringCol(ColMonth)
		weekdays = rs.stringCol(ColDayOfWeek)
		yearMonths = rs.stringCol(ColYearMonth)
		ageGroups = rs.stringCol(ColAgeGroup)
	}

	out := make([]Transaction, rs.Len())
	for i := range out {
		out[i] = Transaction{
			TransactionID: ids[i],
			Date:          dates[i],
			CustomerID:    customers[i],
			Gender:        genders[i],
			Age:           ages[i],
			Category:      categories[i],
			Quantity:      quantities[i],
			PricePerUnit:  prices[i],
			TotalAmount:   totals[i],
		}
		if derived {
			out[i].MonthName = months[i]
			out[i].DayOfWeek = weekdays[i]
			out[i].YearMonth = yearMonths[i]
			out[i].AgeGroup = ageGroups[i]
		}
	}
	return out, nil
}
