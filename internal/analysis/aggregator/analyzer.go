package aggregator

import (
	"errors"
	"fmt"

	"github.com/skalibog/cascade/internal/analysis/cascade"
	"github.com/skalibog/cascade/internal/analysis/performance"
	"github.com/skalibog/cascade/internal/backtest"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
)

// ErrNoBenchmark возвращается, если бенчмарка нет среди активов матрицы
var ErrNoBenchmark = errors.New("бенчмарк отсутствует в данных")

// Analyzer объединяет детектор, симулятор и расчет статистики в один прогон
type Analyzer struct {
	detector    *cascade.Detector
	simulator   *backtest.Simulator
	performance *performance.Analyzer
}

// Result все промежуточные и итоговые результаты прогона
type Result struct {
	Strategy  config.StrategyConfig
	Detection *cascade.Detection
	Tradable  *market.Mask
	Trades    []models.TradeRecord
	Summary   *models.PerformanceSummary
}

// NewAnalyzer создает новый анализатор
func NewAnalyzer(strategy config.StrategyConfig, bt config.BacktestConfig) *Analyzer {
	return &Analyzer{
		detector:    cascade.NewDetector(strategy),
		simulator:   backtest.NewSimulator(bt),
		performance: performance.NewAnalyzer(bt),
	}
}

// Run прогоняет стратегию: обнаружение, подтверждение, сдвиг, симуляция, статистика.
// Входные матрицы только читаются, поэтому один набор данных можно отдавать
// нескольким анализаторам одновременно.
func (a *Analyzer) Run(price, volume *market.Matrix, benchmark string) (*Result, error) {
	bench, ok := price.Column(benchmark)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBenchmark, benchmark)
	}

	detection, tradable, err := a.detector.Tradable(price, volume)
	if err != nil {
		return nil, fmt.Errorf("ошибка обнаружения каскадов: %w", err)
	}
	logger.Debug("AGGREGATOR: Обнаружение завершено",
		zap.Int("сигналов", detection.Signals.Count()),
		zap.Int("событий", len(detection.Events)))

	trades, err := a.simulator.Run(tradable, price)
	if err != nil {
		return nil, fmt.Errorf("ошибка симуляции сделок: %w", err)
	}
	logger.Debug("AGGREGATOR: Симуляция завершена", zap.Int("сделок", len(trades)))

	summary, err := a.performance.Analyze(trades, price.Index, bench)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета статистики: %w", err)
	}

	return &Result{
		Strategy:  a.detector.Config(),
		Detection: detection,
		Tradable:  tradable,
		Trades:    trades,
		Summary:   summary,
	}, nil
}
