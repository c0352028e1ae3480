// Package market содержит выровненные по времени матрицы цен и объемов.
package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrMisaligned матрицы цен и объемов не совпадают по времени или набору активов
	ErrMisaligned = errors.New("матрицы не выровнены")
	// ErrBadIndex временной индекс не строго возрастает или шаг неравномерный
	ErrBadIndex = errors.New("некорректный временной индекс")
)

// Matrix таблица (время, актив) -> значение. Columns[j][t] - значение актива Symbols[j] в момент Index[t].
// Пропуски хранятся как NaN.
type Matrix struct {
	Index   []time.Time
	Symbols []string
	Columns [][]float64
}

// NewMatrix создает матрицу, заполненную NaN, и проверяет индекс
func NewMatrix(index []time.Time, symbols []string) (*Matrix, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if err := checkSymbols(symbols); err != nil {
		return nil, err
	}

	columns := make([][]float64, len(symbols))
	for j := range columns {
		col := make([]float64, len(index))
		for t := range col {
			col[t] = math.NaN()
		}
		columns[j] = col
	}

	return &Matrix{
		Index:   index,
		Symbols: symbols,
		Columns: columns,
	}, nil
}

// Len возвращает число временных точек
func (m *Matrix) Len() int {
	return len(m.Index)
}

// Column возвращает ряд актива по символу
func (m *Matrix) Column(symbol string) ([]float64, bool) {
	for j, s := range m.Symbols {
		if s == symbol {
			return m.Columns[j], true
		}
	}
	return nil, false
}

// Step возвращает шаг временного индекса
func (m *Matrix) Step() time.Duration {
	if len(m.Index) < 2 {
		return 0
	}
	return m.Index[1].Sub(m.Index[0])
}

// Span возвращает календарную длину индекса
func (m *Matrix) Span() time.Duration {
	if len(m.Index) < 2 {
		return 0
	}
	return m.Index[len(m.Index)-1].Sub(m.Index[0])
}

// Mask булева матрица той же формы, что и Matrix
type Mask struct {
	Index   []time.Time
	Symbols []string
	Columns [][]bool
}

// NewMask создает пустую маску
func NewMask(index []time.Time, symbols []string) *Mask {
	columns := make([][]bool, len(symbols))
	for j := range columns {
		columns[j] = make([]bool, len(index))
	}
	return &Mask{
		Index:   index,
		Symbols: symbols,
		Columns: columns,
	}
}

// RowCount возвращает число активов с сигналом в момент t
func (m *Mask) RowCount(t int) int {
	n := 0
	for j := range m.Columns {
		if m.Columns[j][t] {
			n++
		}
	}
	return n
}

// Count возвращает общее число сигналов
func (m *Mask) Count() int {
	n := 0
	for t := range m.Index {
		n += m.RowCount(t)
	}
	return n
}

// Shift сдвигает маску вперед на n интервалов. Первые n строк становятся false.
func (m *Mask) Shift(n int) *Mask {
	out := NewMask(m.Index, m.Symbols)
	for j, col := range m.Columns {
		for t := n; t < len(col); t++ {
			out.Columns[j][t] = col[t-n]
		}
	}
	return out
}

// CheckAligned проверяет, что матрицы совпадают по индексу и набору активов
func CheckAligned(price, volume *Matrix) error {
	if price == nil || volume == nil {
		return fmt.Errorf("%w: пустая матрица", ErrMisaligned)
	}
	if err := sameIndex(price.Index, volume.Index); err != nil {
		return err
	}
	if err := sameSymbols(price.Symbols, volume.Symbols); err != nil {
		return err
	}
	return checkShape(price, volume)
}

// CheckMaskAligned проверяет, что маска совпадает с матрицей по форме
func CheckMaskAligned(mask *Mask, price *Matrix) error {
	if mask == nil || price == nil {
		return fmt.Errorf("%w: пустая матрица", ErrMisaligned)
	}
	if err := sameIndex(mask.Index, price.Index); err != nil {
		return err
	}
	return sameSymbols(mask.Symbols, price.Symbols)
}

func sameIndex(a, b []time.Time) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: длина индекса %d != %d", ErrMisaligned, len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return fmt.Errorf("%w: расхождение индекса в позиции %d (%s != %s)",
				ErrMisaligned, i, a[i].Format(time.RFC3339), b[i].Format(time.RFC3339))
		}
	}
	return nil
}

func sameSymbols(a, b []string) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: число активов %d != %d", ErrMisaligned, len(a), len(b))
	}
	for j := range a {
		if a[j] != b[j] {
			return fmt.Errorf("%w: актив %q != %q в колонке %d", ErrMisaligned, a[j], b[j], j)
		}
	}
	return nil
}

func checkShape(a, b *Matrix) error {
	for _, m := range []*Matrix{a, b} {
		if len(m.Columns) != len(m.Symbols) {
			return fmt.Errorf("%w: колонок %d, активов %d", ErrMisaligned, len(m.Columns), len(m.Symbols))
		}
		for j, col := range m.Columns {
			if len(col) != len(m.Index) {
				return fmt.Errorf("%w: длина колонки %s %d != %d", ErrMisaligned, m.Symbols[j], len(col), len(m.Index))
			}
		}
	}
	return nil
}

func checkIndex(index []time.Time) error {
	if len(index) < 2 {
		return nil
	}
	step := index[1].Sub(index[0])
	if step <= 0 {
		return fmt.Errorf("%w: индекс не возрастает в позиции 1", ErrBadIndex)
	}
	for i := 2; i < len(index); i++ {
		d := index[i].Sub(index[i-1])
		if d <= 0 {
			return fmt.Errorf("%w: индекс не возрастает в позиции %d", ErrBadIndex, i)
		}
		if d != step {
			return fmt.Errorf("%w: шаг %s в позиции %d, ожидался %s", ErrBadIndex, d, i, step)
		}
	}
	return nil
}

func checkSymbols(symbols []string) error {
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%w: актив %q повторяется", ErrMisaligned, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
