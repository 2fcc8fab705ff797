// derive.go
package processor

import (
	"RetailInsight/src/datasource"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// AgeUnbucketed 年龄不在 [0,100] 内时的分组标签
const AgeUnbucketed = "unbucketed"

// ageBin 左闭右开区间 [Low, High)，最后一档右端闭合
type ageBin struct {
	Low, High int
	Label     string
}

var ageBins = []ageBin{
	{0, 25, "18-24"},
	{25, 35, "25-34"},
	{35, 45, "35-44"},
	{45, 55, "45-54"},
	{55, 100, "55+"},
}

// AgeGroups 年龄分组的固定顺序
var AgeGroups = []string{"18-24", "25-34", "35-44", "45-54", "55+"}

// Weekdays 周一开始的星期顺序
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Months 一月开始的月份顺序
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// AgeGroupOf 返回年龄所属分组，超出 [0,100] 返回 AgeUnbucketed
func AgeGroupOf(age int) string {
	last := ageBins[len(ageBins)-1]
	for _, b := range ageBins {
		if age >= b.Low && age < b.High {
			return b.Label
		}
	}
	if age == last.High {
		return last.Label
	}
	return AgeUnbucketed
}

// weekdayName 固定英文名称，不依赖 locale
func weekdayName(d time.Weekday) string {
	// time.Weekday 从 Sunday=0 开始
	return Weekdays[(int(d)+6)%7]
}

func monthName(m time.Month) string {
	return Months[int(m)-1]
}

// calendarColumns 由日期列计算 Month / Day_of_Week / Year_Month
type calendarColumns struct{}

func (calendarColumns) ColCalculation(data *dataframe.DataFrame) error {
	rs := RecordSet{df: *data}
	dates, err := rs.dates()
	if err != nil {
		return err
	}

	n := data.Nrow()
	months := make([]string, n)
	weekdays := make([]string, n)
	yearMonths := make([]string, n)
	for i, d := range dates {
		months[i] = monthName(d.Month)
		weekdays[i] = weekdayName(d.Weekday())
		yearMonths[i] = fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	}

	df := data.Mutate(series.New(months, series.String, ColMonth)).
		Mutate(series.New(weekdays, series.String, ColDayOfWeek)).
		Mutate(series.New(yearMonths, series.String, ColYearMonth))
	*data = df
	return nil
}

// ageGroupColumn 由年龄列计算 Age Group
type ageGroupColumn struct{}

func (ageGroupColumn) ColCalculation(data *dataframe.DataFrame) error {
	rs := RecordSet{df: *data}
	ages, err := rs.intCol(ColAge)
	if err != nil {
		return err
	}

	groups := make([]string, data.Nrow())
	for i, age := range ages {
		groups[i] = AgeGroupOf(age)
	}
	*data = data.Mutate(series.New(groups, series.String, ColAgeGroup))
	return nil
}

// Derive 附加全部派生列，返回新的 RecordSet，入参不变
func Derive(rs RecordSet) (RecordSet, error) {
	if rs.df.Ncol() == 0 {
		return RecordSet{}, datasource.MissingColumn(ColDate)
	}
	proc := NewDataProcessor(rs.df, calendarColumns{}, ageGroupColumn{})
	df, err := proc.Run()
	if err != nil {
		return RecordSet{}, fmt.Errorf("derive features: %w", err)
	}
	return RecordSet{df: df}, nil
}
