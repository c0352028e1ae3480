package aggregator

import (
	"testing"

	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/internal/market/markettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCascadeScenario(t *testing.T) {
	price, volume := markettest.Cascade(300, 200)

	result, err := NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "A")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Detection.Signals.Count())
	assert.Len(t, result.Detection.Events, 3)
	assert.Equal(t, 3, result.Tradable.Count())
	require.Len(t, result.Trades, 3)
	assert.Equal(t, 3, result.Summary.TradeCount)
	assert.InDelta(t, 0.03+0.015-0.01-3*0.002, result.Summary.TotalReturn, 1e-9)
	assert.Equal(t, 1, result.Summary.FastExits)
	assert.Equal(t, 2, result.Summary.SlowExits)
	assert.Equal(t, config.DefaultStrategy(), result.Strategy)
}

func TestRunQuorumNotMet(t *testing.T) {
	price, volume := markettest.Cascade(300, 200)
	// Объем C остается обычным, локальный сигнал только у двух активов
	markettest.Set(volume, "C", 200, 105)

	result, err := NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "A")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Detection.Raw.Count())
	assert.Zero(t, result.Detection.Signals.Count())
	assert.Empty(t, result.Trades)
	assert.Zero(t, result.Summary.TradeCount)
	assert.Zero(t, result.Summary.TotalReturn)
}

func TestRunMissingBenchmark(t *testing.T) {
	price, volume := markettest.Baseline(10, "A", "B")
	_, err := NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "BTCUSDT")
	assert.ErrorIs(t, err, ErrNoBenchmark)
}

func TestRunMisaligned(t *testing.T) {
	price, _ := markettest.Baseline(10, "A", "B")
	_, volume := markettest.Baseline(11, "A", "B")
	_, err := NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "A")
	assert.ErrorIs(t, err, market.ErrMisaligned)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	price, volume := markettest.Random(3, 600, "A", "B", "C", "D")
	priceCopy := markettest.Clone(price)
	volumeCopy := markettest.Clone(volume)

	_, err := NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "A")
	require.NoError(t, err)

	assert.Equal(t, priceCopy.Columns, price.Columns)
	assert.Equal(t, volumeCopy.Columns, volume.Columns)
}
