package performance

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/internal/market/markettest"
	"github.com/skalibog/cascade/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBenchmark(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
	}
	return out
}

func tradesAt(index []time.Time, returns ...float64) []models.TradeRecord {
	trades := make([]models.TradeRecord, len(returns))
	for i, r := range returns {
		trades[i] = models.TradeRecord{
			EntryTime:     index[i],
			Symbol:        "A",
			HoldingPeriod: 2,
			GrossReturn:   r + 0.002,
			NetReturn:     r,
		}
	}
	return trades
}

func TestAnalyzeNoTrades(t *testing.T) {
	index := markettest.Index(100)
	summary, err := NewAnalyzer(config.DefaultBacktest()).Analyze(nil, index, flatBenchmark(100))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TradeCount)
	assert.Zero(t, summary.TotalReturn)
	assert.Zero(t, summary.SharpeRatio)
	assert.Zero(t, summary.MaxDrawdown)
	assert.Zero(t, summary.Alpha)
	assert.Zero(t, summary.Beta)
	assert.True(t, summary.SharpeDegenerate)
	assert.True(t, summary.RegressionSkipped)
	assert.InDelta(t, 99.0/24, summary.PeriodDays, 1e-12)
}

func TestAnalyzeAnnualization(t *testing.T) {
	// Ровно 10 суток часовых данных
	index := markettest.Index(241)
	returns := []float64{0.01, -0.005, 0.02, 0.003}

	summary, err := NewAnalyzer(config.DefaultBacktest()).Analyze(tradesAt(index, returns...), index, flatBenchmark(241))
	require.NoError(t, err)

	tpy := 4 / (10 / 365.25)
	mean := 0.007
	std := math.Sqrt(3.38e-4 / 3)

	assert.Equal(t, 4, summary.TradeCount)
	assert.InDelta(t, 10.0, summary.PeriodDays, 1e-12)
	assert.InDelta(t, 0.028, summary.TotalReturn, 1e-12)
	assert.InDelta(t, mean, summary.MeanReturn, 1e-12)
	assert.InDelta(t, tpy, summary.TradesPerYear, 1e-9)
	assert.InDelta(t, mean*tpy, summary.AnnualizedReturn, 1e-9)
	assert.InDelta(t, std*math.Sqrt(tpy), summary.AnnualizedVol, 1e-9)
	assert.InDelta(t, mean/std*math.Sqrt(tpy), summary.SharpeRatio, 1e-9)
	assert.False(t, summary.SharpeDegenerate)
	assert.InDelta(t, -0.005, summary.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.75, summary.WinRate, 1e-12)
	assert.Equal(t, 0, summary.FastExits)
	assert.Equal(t, 4, summary.SlowExits)
}

func TestAnalyzeSharpeDegenerate(t *testing.T) {
	index := markettest.Index(241)
	analyzer := NewAnalyzer(config.DefaultBacktest())

	t.Run("одна сделка", func(t *testing.T) {
		summary, err := analyzer.Analyze(tradesAt(index, 0.01), index, flatBenchmark(241))
		require.NoError(t, err)
		assert.True(t, summary.SharpeDegenerate)
		assert.Zero(t, summary.SharpeRatio)
		assert.Zero(t, summary.AnnualizedVol)
		assert.InDelta(t, 0.01, summary.TotalReturn, 1e-15)
	})

	t.Run("одинаковые доходности", func(t *testing.T) {
		summary, err := analyzer.Analyze(tradesAt(index, 0.25, 0.25, 0.25), index, flatBenchmark(241))
		require.NoError(t, err)
		assert.True(t, summary.SharpeDegenerate)
		assert.Zero(t, summary.SharpeRatio)
		assert.False(t, math.IsNaN(summary.AnnualizedVol))
	})
}

func TestAnalyzeZeroSpan(t *testing.T) {
	index := markettest.Index(1)
	summary, err := NewAnalyzer(config.DefaultBacktest()).Analyze(tradesAt(index, 0.01), index, flatBenchmark(1))
	require.NoError(t, err)
	assert.Zero(t, summary.PeriodDays)
	assert.Zero(t, summary.TradesPerYear)
	assert.Zero(t, summary.AnnualizedReturn)
}

func TestAnalyzeRegressionSkipped(t *testing.T) {
	index := markettest.Index(30)
	summary, err := NewAnalyzer(config.DefaultBacktest()).Analyze(tradesAt(index, 0.01, -0.02, 0.03), index, flatBenchmark(30))
	require.NoError(t, err)

	assert.Equal(t, 29, summary.AlignedSamples)
	assert.True(t, summary.RegressionSkipped)
	assert.Zero(t, summary.Alpha)
	assert.Zero(t, summary.Beta)
	assert.Zero(t, summary.RSquared)
}

func TestAnalyzeRegressionLinear(t *testing.T) {
	const n = 100
	index := markettest.Index(n)

	benchmark := make([]float64, n)
	benchmark[0] = 100
	trades := make([]models.TradeRecord, 0, n-1)
	for i := 1; i < n; i++ {
		x := 0.01 * math.Sin(float64(i))
		benchmark[i] = benchmark[i-1] * (1 + x)
		trades = append(trades, models.TradeRecord{
			EntryTime:     index[i],
			Symbol:        "A",
			HoldingPeriod: 1,
			NetReturn:     0.001 + 0.5*x,
		})
	}

	cfg := config.DefaultBacktest()
	summary, err := NewAnalyzer(cfg).Analyze(trades, index, benchmark)
	require.NoError(t, err)

	assert.Equal(t, n-1, summary.AlignedSamples)
	assert.False(t, summary.RegressionSkipped)
	assert.InDelta(t, 0.5, summary.Beta, 1e-9)
	assert.InDelta(t, 0.001*summary.TradesPerYear, summary.Alpha, 1e-6)
	assert.InDelta(t, 1.0, summary.RSquared, 1e-9)
	assert.Equal(t, n-1, summary.FastExits)
}

func TestAnalyzeSumsTradesAtSameTimestamp(t *testing.T) {
	const n = 80
	index := markettest.Index(n)

	benchmark := make([]float64, n)
	benchmark[0] = 100
	var trades []models.TradeRecord
	for i := 1; i < n; i++ {
		x := 0.02 * math.Cos(float64(i)*0.7)
		benchmark[i] = benchmark[i-1] * (1 + x)
		// Две сделки в один момент, в сумме 2x
		for _, symbol := range []string{"A", "B"} {
			trades = append(trades, models.TradeRecord{
				EntryTime:     index[i],
				Symbol:        symbol,
				HoldingPeriod: 2,
				NetReturn:     x,
			})
		}
	}

	summary, err := NewAnalyzer(config.DefaultBacktest()).Analyze(trades, index, benchmark)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, summary.Beta, 1e-9)
	assert.InDelta(t, 0.0, summary.Alpha, 1e-6)
}

func TestAnalyzeRejectsMisalignedBenchmark(t *testing.T) {
	index := markettest.Index(10)
	_, err := NewAnalyzer(config.DefaultBacktest()).Analyze(nil, index, flatBenchmark(9))
	assert.ErrorIs(t, err, market.ErrMisaligned)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"пусто", nil, 0},
		{"неубывающий ряд", []float64{0.01, 0, 0.02}, 0},
		{"просадка после пика", []float64{0.01, -0.02, 0.005, -0.01, 0.03}, -0.025},
		{"первая сделка убыточна", []float64{-0.01, -0.02}, -0.02},
		{"восстановление", []float64{0.05, -0.01, 0.02}, -0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.returns)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.LessOrEqual(t, got, 0.0)
		})
	}
}

func TestMaxDrawdownRandom(t *testing.T) {
	price, _ := markettest.Random(11, 400, "A")
	returns := market.PctChange(price.Columns[0], 1)[1:]

	dd := MaxDrawdown(returns)
	assert.LessOrEqual(t, dd, 0.0)

	decreasing := false
	cum := 0.0
	for i, r := range returns {
		next := cum + r
		if i > 0 && next < cum {
			decreasing = true
		}
		cum = next
	}
	assert.Equal(t, decreasing, dd < 0)
}
