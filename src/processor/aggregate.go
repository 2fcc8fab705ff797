// aggregate.go
package processor

import (
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// MonthlyRevenue 月度营收，YearMonth 形如 "2023-01"
type MonthlyRevenue struct {
	YearMonth string
	Revenue   decimal.Decimal
}

// Summary 看板顶部的四个核心指标
type Summary struct {
	TotalRevenue     decimal.Decimal
	TransactionCount int
	AverageValue     decimal.Decimal
	HasAverageValue  bool
	AverageAge       float64
	HasAverageAge    bool
}

// TotalRevenue Total Amount 求和，空集合为 0
func TotalRevenue(rs RecordSet) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range rs.floatCol(ColTotal) {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum
}

// TransactionCount 交易笔数
func TransactionCount(rs RecordSet) int {
	return rs.Len()
}

// AverageTransactionValue 平均客单价，空集合时 ok 为 false(未定义，不是 0)
func AverageTransactionValue(rs RecordSet) (decimal.Decimal, bool) {
	n := rs.Len()
	if n == 0 {
		return decimal.Zero, false
	}
	return TotalRevenue(rs).Div(decimal.NewFromInt(int64(n))), true
}

// AverageAge 客户平均年龄，空集合时 ok 为 false
func AverageAge(rs RecordSet) (float64, bool) {
	ages := rs.floatCol(ColAge)
	if len(ages) == 0 {
		return 0, false
	}
	return stat.Mean(ages, nil), true
}

// Summarize 一次性计算核心指标
func Summarize(rs RecordSet) Summary {
	avgValue, hasValue := AverageTransactionValue(rs)
	avgAge, hasAge := AverageAge(rs)
	return Summary{
		TotalRevenue:     TotalRevenue(rs),
		TransactionCount: TransactionCount(rs),
		AverageValue:     avgValue,
		HasAverageValue:  hasValue,
		AverageAge:       avgAge,
		HasAverageAge:    hasAge,
	}
}

// sumBy 按 key 列分组求 Total Amount 之和
func sumBy(rs RecordSet, keyCol string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	keys := rs.stringCol(keyCol)
	totals := rs.floatCol(ColTotal)
	for i, k := range keys {
		out[k] = out[k].Add(decimal.NewFromFloat(totals[i]))
	}
	return out
}

// countBy 按 key 列分组计数
func countBy(rs RecordSet, keyCol string) map[string]int {
	out := make(map[string]int)
	for _, k := range rs.stringCol(keyCol) {
		out[k]++
	}
	return out
}

// MonthlyRevenueSeries 按 Year_Month 汇总营收，按月份升序
func MonthlyRevenueSeries(rs RecordSet) []MonthlyRevenue {
	sums := sumBy(rs, ColYearMonth)
	out := make([]MonthlyRevenue, 0, len(sums))
	for ym, revenue := range sums {
		out = append(out, MonthlyRevenue{YearMonth: ym, Revenue: revenue})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].YearMonth < out[j].YearMonth
	})
	return out
}

// RevenueByAgeGroup 各年龄段营收，没有记录的年龄段不出现
func RevenueByAgeGroup(rs RecordSet) map[string]decimal.Decimal {
	return sumBy(rs, ColAgeGroup)
}

// RevenueByCategory 各商品类别营收
func RevenueByCategory(rs RecordSet) map[string]decimal.Decimal {
	return sumBy(rs, ColCategory)
}

// CountByGender 各性别交易笔数
func CountByGender(rs RecordSet) map[string]int {
	return countBy(rs, ColGender)
}

// CountByWeekday 每个星期几的交易笔数
func CountByWeekday(rs RecordSet) map[string]int {
	return countBy(rs, ColDayOfWeek)
}

// CountByCategory 各商品类别交易笔数
func CountByCategory(rs RecordSet) map[string]int {
	return countBy(rs, ColCategory)
}

// ValueDistributionByCategory 各类别的单笔金额列表，保持原始行顺序
func ValueDistributionByCategory(rs RecordSet) map[string][]float64 {
	out := make(map[string][]float64)
	categories := rs.stringCol(ColCategory)
	totals := rs.floatCol(ColTotal)
	for i, c := range categories {
		out[c] = append(out[c], totals[i])
	}
	return out
}

// GroupByCategory 按商品类别拆分为多个 RecordSet，各组保持原始行顺序
func GroupByCategory(rs RecordSet) map[string]RecordSet {
	out := make(map[string]RecordSet)
	indexes := make(map[string][]int)
	for i, c := range rs.stringCol(ColCategory) {
		indexes[c] = append(indexes[c], i)
	}
	for c, idx := range indexes {
		out[c] = RecordSet{df: rs.df.Subset(idx)}
	}
	return out
}
