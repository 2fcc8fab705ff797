// filter.go
package processor

import (
	"RetailInsight/src/utils"

	"cloud.google.com/go/civil"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Params 过滤参数，日期区间两端都包含
type Params struct {
	From       civil.Date
	To         civil.Date
	Categories []string
	Genders    []string
}

// Filter 按日期区间、商品类别和性别过滤，保持原始行顺序
//
// 类别或性别为空集合时返回空结果(不会隐式全选)；From 晚于 To 时同样返回空结果。
func Filter(rs RecordSet, p Params) RecordSet {
	if rs.Empty() {
		return rs
	}
	if len(p.Categories) == 0 || len(p.Genders) == 0 || p.From.After(p.To) {
		return rs.none()
	}

	df := rs.df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: ColDate, Comparator: series.GreaterEq, Comparando: p.From.String()},
		dataframe.F{Colname: ColDate, Comparator: series.LessEq, Comparando: p.To.String()},
		dataframe.F{Colname: ColCategory, Comparator: series.In, Comparando: p.Categories},
		dataframe.F{Colname: ColGender, Comparator: series.In, Comparando: p.Genders},
	)
	return RecordSet{df: df}
}

// none 保留列结构的空集合
func (rs RecordSet) none() RecordSet {
	return RecordSet{df: rs.df.Subset([]int{})}
}

// DefaultParams 覆盖全部数据的过滤参数：完整日期区间 + 全部类别 + 全部性别
func DefaultParams(rs RecordSet) (Params, error) {
	from, to, _, err := DateBounds(rs)
	if err != nil {
		return Params{}, err
	}
	return Params{
		From:       from,
		To:         to,
		Categories: Categories(rs),
		Genders:    Genders(rs),
	}, nil
}

// Categories 全部商品类别，按首次出现顺序
func Categories(rs RecordSet) []string {
	return utils.Distinct(rs.stringCol(ColCategory))
}

// Genders 全部性别取值，按首次出现顺序
func Genders(rs RecordSet) []string {
	return utils.Distinct(rs.stringCol(ColGender))
}

// DateBounds 最早和最晚日期，空集合时 ok 为 false
func DateBounds(rs RecordSet) (from, to civil.Date, ok bool, err error) {
	dates, err := rs.dates()
	if err != nil || len(dates) == 0 {
		return civil.Date{}, civil.Date{}, false, err
	}
	from, to = dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	return from, to, true, nil
}
