// Package markettest строит синтетические матрицы для тестов.
package markettest

import (
	"math"
	"math/rand"
	"time"

	"github.com/skalibog/cascade/internal/market"
)

// Start начало синтетической истории
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Index возвращает часовой индекс длины n
func Index(n int) []time.Time {
	index := make([]time.Time, n)
	for i := range index {
		index[i] = Start.Add(time.Duration(i) * time.Hour)
	}
	return index
}

// Baseline возвращает спокойный рынок: цена 100 без движения, объем 100..109 по кругу
func Baseline(n int, symbols ...string) (*market.Matrix, *market.Matrix) {
	index := Index(n)
	price, err := market.NewMatrix(index, symbols)
	if err != nil {
		panic(err)
	}
	volume, err := market.NewMatrix(index, symbols)
	if err != nil {
		panic(err)
	}

	for j := range symbols {
		for t := 0; t < n; t++ {
			price.Columns[j][t] = 100
			volume.Columns[j][t] = 100 + float64(t%10)
		}
	}
	return price, volume
}

// SetPath записывает значения ряда начиная с from и протягивает последнее значение до конца
func SetPath(m *market.Matrix, symbol string, from int, values ...float64) {
	col, ok := m.Column(symbol)
	if !ok {
		panic("markettest: неизвестный актив " + symbol)
	}
	for i, v := range values {
		if from+i < len(col) {
			col[from+i] = v
		}
	}
	last := values[len(values)-1]
	for t := from + len(values); t < len(col); t++ {
		col[t] = last
	}
}

// Set записывает одно значение
func Set(m *market.Matrix, symbol string, t int, v float64) {
	col, ok := m.Column(symbol)
	if !ok {
		panic("markettest: неизвестный актив " + symbol)
	}
	col[t] = v
}

// Clone возвращает независимую копию матрицы
func Clone(m *market.Matrix) *market.Matrix {
	out := &market.Matrix{
		Index:   m.Index,
		Symbols: m.Symbols,
		Columns: make([][]float64, len(m.Columns)),
	}
	for j, col := range m.Columns {
		out.Columns[j] = append([]float64(nil), col...)
	}
	return out
}

// Cascade строит сценарий из трех активов A, B, C: в момент event каждый падает на 6%
// на объеме 500 и отскакивает на 3% в следующий интервал. Дальнейший путь:
// A +3% (быстрый выход), B +1% затем +1.5% к точке входа, C +1.9% затем -1%.
func Cascade(n, event int) (*market.Matrix, *market.Matrix) {
	price, volume := Baseline(n, "A", "B", "C")

	drop := 100 * 0.94
	entry := drop * 1.03

	SetPath(price, "A", event, drop, entry, entry*1.03)
	SetPath(price, "B", event, drop, entry, entry*1.01, entry*1.015)
	SetPath(price, "C", event, drop, entry, entry*1.019, entry*0.99)

	for _, s := range []string{"A", "B", "C"} {
		Set(volume, s, event, 500)
	}
	return price, volume
}

// Random строит случайный рынок с общими для всех активов шоками, чтобы кворум
// иногда выполнялся. Результат детерминирован для одного seed.
func Random(seed int64, n int, symbols ...string) (*market.Matrix, *market.Matrix) {
	rng := rand.New(rand.NewSource(seed))
	price, volume := Baseline(n, symbols...)

	shocks := make([]float64, n)
	for t := range shocks {
		if rng.Float64() < 0.04 {
			shocks[t] = -(0.03 + 0.09*rng.Float64())
		}
	}

	for j := range symbols {
		p := 100.0
		for t := 0; t < n; t++ {
			r := rng.NormFloat64() * 0.01
			v := 100 * math.Exp(rng.NormFloat64()*0.3)
			if shocks[t] != 0 && rng.Float64() < 0.7 {
				r += shocks[t]
				v *= 3 + 5*rng.Float64()
			}
			p *= 1 + r
			price.Columns[j][t] = p
			volume.Columns[j][t] = v
		}
	}
	return price, volume
}
