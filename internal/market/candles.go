package market

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/skalibog/cascade/pkg/models"
)

// FromCandles строит матрицы цен закрытия и объемов на общей временной сетке с шагом step.
// Сетка покрывает период от самой ранней до самой поздней свечи, пропуски остаются NaN.
// Порядок колонок совпадает с порядком symbols; повторная свеча на ту же метку заменяет предыдущую.
func FromCandles(candles map[string][]*models.Candle, symbols []string, step time.Duration) (*Matrix, *Matrix, error) {
	if step <= 0 {
		return nil, nil, fmt.Errorf("%w: шаг сетки %s", ErrBadIndex, step)
	}

	var first, last time.Time
	for _, symbol := range symbols {
		for _, c := range candles[symbol] {
			if first.IsZero() || c.OpenTime.Before(first) {
				first = c.OpenTime
			}
			if last.IsZero() || c.OpenTime.After(last) {
				last = c.OpenTime
			}
		}
	}
	if first.IsZero() {
		return nil, nil, fmt.Errorf("нет свечей ни для одного актива")
	}

	n := int(last.Sub(first)/step) + 1
	index := lo.Times(n, func(i int) time.Time {
		return first.Add(time.Duration(i) * step).UTC()
	})

	price, err := NewMatrix(index, symbols)
	if err != nil {
		return nil, nil, err
	}
	volume, err := NewMatrix(index, symbols)
	if err != nil {
		return nil, nil, err
	}

	for j, symbol := range symbols {
		for _, c := range candles[symbol] {
			offset := c.OpenTime.Sub(first)
			if offset%step != 0 {
				return nil, nil, fmt.Errorf("%w: свеча %s %s не попадает на сетку %s",
					ErrBadIndex, symbol, c.OpenTime.Format(time.RFC3339), step)
			}
			t := int(offset / step)
			price.Columns[j][t] = c.Close
			volume.Columns[j][t] = c.Volume
		}
	}

	return price, volume, nil
}
