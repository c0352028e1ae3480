package market

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/cascade/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourly(n int) []time.Time {
	index := make([]time.Time, n)
	for i := range index {
		index[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return index
}

func TestNewMatrixFillsNaN(t *testing.T) {
	m, err := NewMatrix(hourly(3), []string{"A", "B"})
	require.NoError(t, err)
	for _, col := range m.Columns {
		for _, v := range col {
			assert.True(t, math.IsNaN(v))
		}
	}
	assert.Equal(t, time.Hour, m.Step())
	assert.Equal(t, 2*time.Hour, m.Span())
}

func TestNewMatrixRejectsBadIndex(t *testing.T) {
	dup := []time.Time{t0, t0.Add(time.Hour), t0.Add(time.Hour)}
	_, err := NewMatrix(dup, []string{"A"})
	assert.ErrorIs(t, err, ErrBadIndex)

	uneven := []time.Time{t0, t0.Add(time.Hour), t0.Add(3 * time.Hour)}
	_, err = NewMatrix(uneven, []string{"A"})
	assert.ErrorIs(t, err, ErrBadIndex)

	descending := []time.Time{t0.Add(time.Hour), t0}
	_, err = NewMatrix(descending, []string{"A"})
	assert.ErrorIs(t, err, ErrBadIndex)

	_, err = NewMatrix(hourly(2), []string{"A", "A"})
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestCheckAligned(t *testing.T) {
	price, err := NewMatrix(hourly(4), []string{"A", "B"})
	require.NoError(t, err)

	volume, err := NewMatrix(hourly(4), []string{"A", "B"})
	require.NoError(t, err)
	assert.NoError(t, CheckAligned(price, volume))

	shorter, err := NewMatrix(hourly(3), []string{"A", "B"})
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAligned(price, shorter), ErrMisaligned)

	shiftedIndex := hourly(5)[1:]
	shifted, err := NewMatrix(shiftedIndex, []string{"A", "B"})
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAligned(price, shifted), ErrMisaligned)

	swapped, err := NewMatrix(hourly(4), []string{"B", "A"})
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAligned(price, swapped), ErrMisaligned)

	fewer, err := NewMatrix(hourly(4), []string{"A"})
	require.NoError(t, err)
	assert.ErrorIs(t, CheckAligned(price, fewer), ErrMisaligned)

	volume.Columns[1] = volume.Columns[1][:2]
	assert.ErrorIs(t, CheckAligned(price, volume), ErrMisaligned)

	assert.ErrorIs(t, CheckAligned(price, nil), ErrMisaligned)
}

func TestMaskShiftAndCount(t *testing.T) {
	mask := NewMask(hourly(4), []string{"A", "B"})
	mask.Columns[0][1] = true
	mask.Columns[1][1] = true
	mask.Columns[1][3] = true

	assert.Equal(t, 2, mask.RowCount(1))
	assert.Equal(t, 3, mask.Count())

	shifted := mask.Shift(1)
	assert.Equal(t, []bool{false, false, true, false}, shifted.Columns[0])
	assert.Equal(t, []bool{false, false, true, false}, shifted.Columns[1])
	// Исходная маска не меняется
	assert.True(t, mask.Columns[1][3])
}

func TestPctChange(t *testing.T) {
	series := []float64{100, 110, 99, math.NaN(), 120, 0, 50}
	r1 := PctChange(series, 1)

	assert.True(t, math.IsNaN(r1[0]))
	assert.InDelta(t, 0.10, r1[1], 1e-12)
	assert.InDelta(t, -0.10, r1[2], 1e-12)
	assert.True(t, math.IsNaN(r1[3]), "пропуск в текущей точке")
	assert.True(t, math.IsNaN(r1[4]), "пропуск в базе")
	assert.InDelta(t, -1.0, r1[5], 1e-12)
	assert.True(t, math.IsNaN(r1[6]), "нулевая база не превращается в ноль")

	r2 := PctChange(series, 2)
	assert.True(t, math.IsNaN(r2[1]))
	assert.InDelta(t, -0.01, r2[2], 1e-12)
}

func TestForwardReturn(t *testing.T) {
	series := []float64{100, 103, 99, 110}
	f1 := ForwardReturn(series, 1)
	assert.InDelta(t, 0.03, f1[0], 1e-12)
	assert.True(t, math.IsNaN(f1[3]))

	f2 := ForwardReturn(series, 2)
	assert.InDelta(t, -0.01, f2[0], 1e-12)
	assert.True(t, math.IsNaN(f2[2]))
	assert.True(t, math.IsNaN(f2[3]))
}

func TestFirstDefined(t *testing.T) {
	assert.Equal(t, 2, FirstDefined([]float64{math.NaN(), math.NaN(), 1}))
	assert.Equal(t, -1, FirstDefined([]float64{math.NaN()}))
}

func TestFromCandlesGapFills(t *testing.T) {
	candle := func(symbol string, hour int, close, volume float64) *models.Candle {
		return &models.Candle{
			Symbol:   symbol,
			Interval: "1h",
			OpenTime: t0.Add(time.Duration(hour) * time.Hour),
			Close:    close,
			Volume:   volume,
		}
	}
	candles := map[string][]*models.Candle{
		"A": {candle("A", 0, 10, 1), candle("A", 1, 11, 2), candle("A", 3, 13, 4)},
		"B": {candle("B", 1, 20, 5), candle("B", 2, 21, 6), candle("B", 2, 22, 7)},
	}

	price, volume, err := FromCandles(candles, []string{"A", "B"}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, CheckAligned(price, volume))

	assert.Equal(t, 4, price.Len())
	assert.Equal(t, []float64{10, 11}, price.Columns[0][:2])
	assert.True(t, math.IsNaN(price.Columns[0][2]), "пропуск не заполняется нулем")
	assert.Equal(t, 13.0, price.Columns[0][3])

	assert.True(t, math.IsNaN(price.Columns[1][0]))
	assert.Equal(t, 22.0, price.Columns[1][2], "последняя свеча на метку побеждает")
	assert.Equal(t, 7.0, volume.Columns[1][2])
	assert.True(t, math.IsNaN(volume.Columns[1][3]))
}

func TestFromCandlesRejectsOffGrid(t *testing.T) {
	candles := map[string][]*models.Candle{
		"A": {
			{Symbol: "A", OpenTime: t0, Close: 1},
			{Symbol: "A", OpenTime: t0.Add(90 * time.Minute), Close: 2},
		},
	}
	_, _, err := FromCandles(candles, []string{"A"}, time.Hour)
	assert.ErrorIs(t, err, ErrBadIndex)

	_, _, err = FromCandles(map[string][]*models.Candle{}, []string{"A"}, time.Hour)
	assert.Error(t, err)
}
