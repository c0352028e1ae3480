package market

import (
	"math"

	"github.com/markcheno/go-talib"
)

// PctChange возвращает доходность за n интервалов: series[t]/series[t-n] - 1.
// Первые n точек, нулевая или пропущенная база дают NaN.
func PctChange(series []float64, n int) []float64 {
	out := make([]float64, len(series))
	if n < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	// Rocp считает (price-prevPrice)/prevPrice, но нулевую базу превращает в 0
	roc := talib.Rocp(series, n)
	for i := range out {
		if i < n || !defined(series[i]) || !defined(series[i-n]) || series[i-n] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = roc[i]
	}
	return out
}

// ForwardReturn возвращает доходность на n интервалов вперед: series[t+n]/series[t] - 1.
// Последние n точек не определены.
func ForwardReturn(series []float64, n int) []float64 {
	back := PctChange(series, n)
	out := make([]float64, len(series))
	for t := range out {
		if t+n < len(back) {
			out[t] = back[t+n]
		} else {
			out[t] = math.NaN()
		}
	}
	return out
}

// FirstDefined возвращает индекс первого определенного значения или -1
func FirstDefined(series []float64) int {
	for i, v := range series {
		if defined(v) {
			return i
		}
	}
	return -1
}

func defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
