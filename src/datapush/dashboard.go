package datapush

import (
	"RetailInsight/src/processor"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// barWidth 趋势条形图的最大宽度
const barWidth = 40

// DashboardData 一次渲染所需的全部聚合结果
type DashboardData struct {
	Source      string
	GeneratedAt time.Time
	Params      processor.Params

	Summary      processor.Summary
	Monthly      []processor.MonthlyRevenue
	AgeGroups    map[string]decimal.Decimal
	Genders      map[string]int
	Weekdays     map[string]int
	Categories   map[string]CategoryStat
	Distribution map[string][]float64
	Rows         []processor.Transaction
}

// CategoryStat 单个商品类别的营收、笔数和客户平均年龄
type CategoryStat struct {
	Revenue    decimal.Decimal
	Count      int
	AverageAge float64
}

// BuildDashboardData 对过滤后的数据集做全部聚合；showRows 为明细行数上限，0 不带明细
func BuildDashboardData(source string, rs processor.RecordSet, p processor.Params, showRows int) (DashboardData, error) {
	data := DashboardData{
		Source:       source,
		GeneratedAt:  time.Now(),
		Params:       p,
		Summary:      processor.Summarize(rs),
		Monthly:      processor.MonthlyRevenueSeries(rs),
		AgeGroups:    processor.RevenueByAgeGroup(rs),
		Genders:      processor.CountByGender(rs),
		Weekdays:     processor.CountByWeekday(rs),
		Categories:   categoryStats(rs),
		Distribution: processor.ValueDistributionByCategory(rs),
	}
	if showRows > 0 {
		txs, err := rs.Transactions()
		if err != nil {
			return DashboardData{}, err
		}
		if len(txs) > showRows {
			txs = txs[:showRows]
		}
		data.Rows = txs
	}
	return data, nil
}

func categoryStats(rs processor.RecordSet) map[string]CategoryStat {
	revenue := processor.RevenueByCategory(rs)
	counts := processor.CountByCategory(rs)
	out := make(map[string]CategoryStat, len(revenue))
	for c, sub := range processor.GroupByCategory(rs) {
		age, _ := processor.AverageAge(sub)
		out[c] = CategoryStat{Revenue: revenue[c], Count: counts[c], AverageAge: age}
	}
	return out
}

// Dashboard 文本看板
type Dashboard struct {
	Title string
}

// Render 把看板写到 w，区块顺序固定
func (d Dashboard) Render(w io.Writer, data DashboardData) error {
	r := &renderer{w: w, p: message.NewPrinter(language.English)}

	title := d.Title
	if title == "" {
		title = "Retail Sales Dashboard"
	}
	r.printf("%s\n%s\n", title, strings.Repeat("=", len(title)))
	r.printf("source: %s  generated: %s\n", data.Source, data.GeneratedAt.Format("2006-01-02 15:04:05"))
	r.printf("filter: %s ~ %s  categories: %s  genders: %s\n\n",
		data.Params.From, data.Params.To, joinOrNone(data.Params.Categories), joinOrNone(data.Params.Genders))

	r.summary(data.Summary)
	if data.Summary.TransactionCount == 0 {
		r.printf("\nNo transactions match the current filter.\n")
		return r.err
	}
	r.monthly(data.Monthly)
	r.ageGroups(data.AgeGroups)
	r.genders(data.Genders)
	r.weekdays(data.Weekdays)
	r.categories(data.Categories, data.Summary.TotalRevenue)
	r.distribution(data.Distribution)
	if len(data.Rows) > 0 {
		r.rows(data.Rows)
	}
	return r.err
}

// renderer 记录第一个写入错误，之后的写入全部跳过
type renderer struct {
	w   io.Writer
	p   *message.Printer
	err error
}

func (r *renderer) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = r.p.Fprintf(r.w, format, args...)
}

func (r *renderer) section(name string) {
	r.printf("\n%s\n%s\n", name, strings.Repeat("-", len(name)))
}

func (r *renderer) summary(s processor.Summary) {
	r.printf("Total Revenue:        %s\n", r.money(s.TotalRevenue))
	r.printf("Transactions:         %d\n", s.TransactionCount)
	if s.HasAverageValue {
		r.printf("Avg Purchase Value:   %s\n", r.cents(s.AverageValue))
	} else {
		r.printf("Avg Purchase Value:   n/a\n")
	}
	if s.HasAverageAge {
		r.printf("Avg Customer Age:     %.1f years\n", s.AverageAge)
	} else {
		r.printf("Avg Customer Age:     n/a\n")
	}
}

func (r *renderer) monthly(series []processor.MonthlyRevenue) {
	r.section("Monthly Revenue")
	max := decimal.Zero
	for _, m := range series {
		max = decimal.Max(max, m.Revenue)
	}
	for _, m := range series {
		r.printf("%s  %12s  %s\n", m.YearMonth, r.money(m.Revenue), bar(m.Revenue, max))
	}
}

func (r *renderer) ageGroups(groups map[string]decimal.Decimal) {
	r.section("Revenue by Age Group")
	for _, g := range append(append([]string{}, processor.AgeGroups...), processor.AgeUnbucketed) {
		if v, ok := groups[g]; ok {
			r.printf("%-10s  %12s\n", g, r.money(v))
		}
	}
}

func (r *renderer) genders(counts map[string]int) {
	r.section("Purchases by Gender")
	total := 0
	for _, n := range counts {
		total += n
	}
	for _, g := range sortedKeys(counts) {
		share := float64(counts[g]) / float64(total) * 100
		r.printf("%-10s  %6d  %5.1f%%\n", g, counts[g], share)
	}
}

func (r *renderer) weekdays(counts map[string]int) {
	r.section("Purchases by Day of Week")
	for _, d := range processor.Weekdays {
		if n, ok := counts[d]; ok {
			r.printf("%-10s  %6d\n", d, n)
		}
	}
}

// categories 营收占比相对 total 计算
func (r *renderer) categories(stats map[string]CategoryStat, total decimal.Decimal) {
	r.section("Revenue by Category")
	r.printf("%-14s  %12s  %6s  %6s  %7s\n", "category", "revenue", "count", "share", "avg age")
	for _, c := range sortedKeys(stats) {
		st := stats[c]
		share := 0.0
		if total.IsPositive() {
			share = st.Revenue.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		r.printf("%-14s  %12s  %6d  %5.1f%%  %7.1f\n", c, r.money(st.Revenue), st.Count, share, st.AverageAge)
	}
}

func (r *renderer) distribution(values map[string][]float64) {
	r.section("Transaction Value by Category")
	r.printf("%-14s  %10s  %10s  %10s  %6s\n", "category", "min", "median", "max", "count")
	for _, c := range sortedKeys(values) {
		sorted := append([]float64(nil), values[c]...)
		sort.Float64s(sorted)
		r.printf("%-14s  %10.2f  %10.2f  %10.2f  %6d\n",
			c,
			floats.Min(sorted),
			stat.Quantile(0.5, stat.Empirical, sorted, nil),
			floats.Max(sorted),
			len(sorted))
	}
}

func (r *renderer) rows(txs []processor.Transaction) {
	r.section("Transactions")
	if r.err != nil {
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDate\tCustomer\tGender\tAge\tCategory\tQty\tPrice\tTotal")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\t%.2f\t%.2f\n",
			tx.TransactionID, tx.Date, tx.CustomerID, tx.Gender, tx.Age,
			tx.Category, tx.Quantity, tx.PricePerUnit, tx.TotalAmount)
	}
	r.err = tw.Flush()
}

// money 整数美元，带千分位，例如 $1,234
func (r *renderer) money(v decimal.Decimal) string {
	return r.p.Sprintf("$%d", v.Round(0).IntPart())
}

// cents 保留两位小数，例如 $12.34
func (r *renderer) cents(v decimal.Decimal) string {
	return r.p.Sprintf("$%.2f", v.Round(2).InexactFloat64())
}

func bar(v, max decimal.Decimal) string {
	if !max.IsPositive() || !v.IsPositive() {
		return ""
	}
	n := int(v.Mul(decimal.NewFromInt(barWidth)).Div(max).Round(0).IntPart())
	if n < 1 {
		n = 1
	}
	return strings.Repeat("#", n)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
