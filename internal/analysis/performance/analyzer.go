// Package performance считает риск и доходность по потоку смоделированных сделок.
package performance

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Analyzer вычисляет сводную статистику бэктеста
type Analyzer struct {
	config config.BacktestConfig
}

// NewAnalyzer создает новый анализатор доходности
func NewAnalyzer(cfg config.BacktestConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze считает статистику по сделкам. index задает календарный период и сетку для
// регрессии, benchmark - цены бенчмарка на той же сетке.
// Отсутствие сделок не ошибка: возвращается сводка с нулями.
func (a *Analyzer) Analyze(trades []models.TradeRecord, index []time.Time, benchmark []float64) (*models.PerformanceSummary, error) {
	if len(benchmark) != len(index) {
		return nil, fmt.Errorf("%w: длина ряда бенчмарка %d != %d", market.ErrMisaligned, len(benchmark), len(index))
	}

	summary := &models.PerformanceSummary{
		TradeCount: len(trades),
	}
	if len(index) > 1 {
		summary.PeriodDays = index[len(index)-1].Sub(index[0]).Hours() / 24
	}

	if len(trades) == 0 {
		summary.SharpeDegenerate = true
		summary.RegressionSkipped = true
		logger.Info("Сделок нет, статистика нулевая")
		return summary, nil
	}

	returns := lo.Map(trades, func(t models.TradeRecord, _ int) float64 {
		return t.NetReturn
	})

	summary.TotalReturn = lo.Sum(returns)
	summary.MeanReturn = summary.TotalReturn / float64(len(returns))
	summary.TradesPerYear = a.tradesPerYear(len(trades), summary.PeriodDays)
	summary.AnnualizedReturn = summary.MeanReturn * summary.TradesPerYear

	std := 0.0
	if len(returns) > 1 {
		std = stat.StdDev(returns, nil)
	}
	summary.AnnualizedVol = std * math.Sqrt(summary.TradesPerYear)
	if std > 0 {
		summary.SharpeRatio = summary.MeanReturn / std * math.Sqrt(summary.TradesPerYear)
	} else {
		summary.SharpeDegenerate = true
	}

	summary.MaxDrawdown = MaxDrawdown(returns)

	summary.WinRate = float64(lo.CountBy(trades, func(t models.TradeRecord) bool {
		return t.NetReturn > 0
	})) / float64(len(trades))
	summary.FastExits = lo.CountBy(trades, func(t models.TradeRecord) bool {
		return t.HoldingPeriod == a.config.FastHold
	})
	summary.SlowExits = len(trades) - summary.FastExits

	a.regress(summary, trades, index, benchmark)

	logger.Info("Статистика рассчитана",
		zap.Int("сделок", summary.TradeCount),
		zap.Float64("total_return", summary.TotalReturn),
		zap.Float64("sharpe", summary.SharpeRatio),
		zap.Float64("max_drawdown", summary.MaxDrawdown),
		zap.Bool("регрессия_пропущена", summary.RegressionSkipped))

	return summary, nil
}

// tradesPerYear пересчитывает число сделок в годовую частоту
func (a *Analyzer) tradesPerYear(count int, days float64) float64 {
	if days <= 0 {
		return 0
	}
	return float64(count) / (days / a.config.DaysPerYear)
}

// regress строит регрессию доходности стратегии на доходность бенчмарка.
// Доходность стратегии в момент t - сумма чистых доходностей сделок, открытых в t, иначе 0.
// При числе совпавших точек меньше min_regression_samples alpha, beta и R² остаются нулевыми.
func (a *Analyzer) regress(summary *models.PerformanceSummary, trades []models.TradeRecord, index []time.Time, benchmark []float64) {
	byTime := make(map[int64]float64, len(trades))
	for _, t := range trades {
		byTime[t.EntryTime.UnixNano()] += t.NetReturn
	}

	benchReturns := market.PctChange(benchmark, 1)
	x := make([]float64, 0, len(index))
	y := make([]float64, 0, len(index))
	for t, ts := range index {
		if math.IsNaN(benchReturns[t]) || math.IsInf(benchReturns[t], 0) {
			continue
		}
		x = append(x, benchReturns[t])
		y = append(y, byTime[ts.UnixNano()])
	}
	summary.AlignedSamples = len(x)

	if len(x) < a.config.MinRegressionSamples {
		summary.RegressionSkipped = true
		logger.Warn("Недостаточно точек для регрессии",
			zap.Int("точек", len(x)),
			zap.Int("требуется", a.config.MinRegressionSamples))
		return
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	corr := stat.Correlation(x, y, nil)

	// Нулевая дисперсия одного из рядов дает NaN
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		summary.RegressionSkipped = true
		return
	}
	summary.Alpha = alpha * summary.TradesPerYear
	summary.Beta = beta
	if !math.IsNaN(corr) {
		summary.RSquared = corr * corr
	}
}

// MaxDrawdown возвращает минимум разности кумулятивной доходности и ее текущего максимума.
// Результат не положителен и равен нулю, если кумулятивный ряд не убывает.
func MaxDrawdown(returns []float64) float64 {
	var cum, peak, worst float64
	for i, r := range returns {
		cum += r
		if i == 0 || cum > peak {
			peak = cum
		}
		if dd := cum - peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
