package cascade

import (
	"math"
	"sort"
)

// rollingQuantile считает квантиль q (0..1) по скользящему окну из window значений,
// заканчивающемуся в t. Окно смотрит только назад. Если окно неполное или содержит NaN,
// результат NaN. Между порядковыми статистиками используется линейная интерполяция.
func rollingQuantile(series []float64, window int, q float64) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(series) < window {
		return out
	}

	// Отсортированное содержимое окна без пропусков
	sorted := make([]float64, 0, window)
	missing := 0

	for t, v := range series {
		if isMissing(v) {
			missing++
		} else {
			sorted = insertSorted(sorted, v)
		}

		if t >= window {
			old := series[t-window]
			if isMissing(old) {
				missing--
			} else {
				sorted = removeSorted(sorted, old)
			}
		}

		if t >= window-1 && missing == 0 {
			out[t] = interpolate(sorted, q)
		}
	}
	return out
}

// interpolate возвращает квантиль q отсортированной выборки
func interpolate(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * q
	lo := math.Floor(h)
	hi := math.Ceil(h)
	a, b := sorted[int(lo)], sorted[int(hi)]
	return a + (h-lo)*(b-a)
}

func insertSorted(s []float64, v float64) []float64 {
	i := sort.SearchFloat64s(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeSorted(s []float64, v float64) []float64 {
	i := sort.SearchFloat64s(s, v)
	if i < len(s) && s[i] == v {
		return append(s[:i], s[i+1:]...)
	}
	return s
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
