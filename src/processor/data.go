// data.go
package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// DataProcess 单个列计算步骤，直接在 DataFrame 上追加或替换列
type DataProcess interface {
	ColCalculation(data *dataframe.DataFrame) error
}

// DataProcessor 按顺序执行一组 DataProcess
type DataProcessor struct {
	df    dataframe.DataFrame
	steps []DataProcess
}

func NewDataProcessor(df dataframe.DataFrame, steps ...DataProcess) *DataProcessor {
	return &DataProcessor{
		df:    df,
		steps: steps,
	}
}

// Run 执行全部计算步骤，任意一步失败则整体失败，不返回半成品
func (p *DataProcessor) Run() (dataframe.DataFrame, error) {
	df := p.df.Copy()
	for _, step := range p.steps {
		if err := step.ColCalculation(&df); err != nil {
			return dataframe.DataFrame{}, err
		}
		if err := df.Error(); err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("column calculation %T: %w", step, err)
		}
	}
	return df, nil
}
