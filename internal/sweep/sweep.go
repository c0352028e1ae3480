// Package sweep перебирает сетку параметров детектора и ранжирует результаты.
package sweep

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/analysis/aggregator"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Point результат одного набора параметров
type Point struct {
	Strategy config.StrategyConfig
	Summary  models.PerformanceSummary
	Events   int
}

// Runner выполняет перебор параметров
type Runner struct {
	base     config.StrategyConfig
	backtest config.BacktestConfig
	grid     config.SweepConfig
}

// NewRunner создает перебор вокруг базовых параметров стратегии
func NewRunner(base config.StrategyConfig, bt config.BacktestConfig, grid config.SweepConfig) *Runner {
	return &Runner{
		base:     base,
		backtest: bt,
		grid:     grid,
	}
}

// Grid возвращает все комбинации initial_drop × cascade_drop × min_assets.
// Пустой список измерения заменяется базовым значением.
func (r *Runner) Grid() []config.StrategyConfig {
	initialDrops := r.grid.InitialDrops
	if len(initialDrops) == 0 {
		initialDrops = []float64{r.base.InitialDrop}
	}
	cascadeDrops := r.grid.CascadeDrops
	if len(cascadeDrops) == 0 {
		cascadeDrops = []float64{r.base.CascadeDrop}
	}
	minAssets := r.grid.MinAssets
	if len(minAssets) == 0 {
		minAssets = []int{r.base.MinAssets}
	}

	grid := make([]config.StrategyConfig, 0, len(initialDrops)*len(cascadeDrops)*len(minAssets))
	for _, initial := range lo.Uniq(initialDrops) {
		for _, cascadeDrop := range lo.Uniq(cascadeDrops) {
			for _, assets := range lo.Uniq(minAssets) {
				cfg := r.base
				cfg.InitialDrop = initial
				cfg.CascadeDrop = cascadeDrop
				cfg.MinAssets = assets
				grid = append(grid, cfg)
			}
		}
	}
	return grid
}

// Run прогоняет стратегию для каждой точки сетки параллельно, не больше workers прогонов
// одновременно. Матрицы общие и только читаются. Результат отсортирован по Sharpe,
// при равенстве по суммарной доходности.
func (r *Runner) Run(ctx context.Context, price, volume *market.Matrix, benchmark string) ([]Point, error) {
	grid := r.Grid()
	points := make([]Point, len(grid))

	workers := r.grid.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, strategy := range grid {
		i, strategy := i, strategy
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := aggregator.NewAnalyzer(strategy, r.backtest).Run(price, volume, benchmark)
			if err != nil {
				return fmt.Errorf("ошибка прогона initial_drop=%v cascade_drop=%v min_assets=%d: %w",
					strategy.InitialDrop, strategy.CascadeDrop, strategy.MinAssets, err)
			}

			points[i] = Point{
				Strategy: strategy,
				Summary:  *result.Summary,
				Events:   len(result.Detection.Events),
			}
			logger.Debug("SWEEP: Точка рассчитана",
				zap.Float64("initial_drop", strategy.InitialDrop),
				zap.Float64("cascade_drop", strategy.CascadeDrop),
				zap.Int("min_assets", strategy.MinAssets),
				zap.Int("сделок", result.Summary.TradeCount))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(points)
	logger.Info("Перебор параметров завершен", zap.Int("точек", len(points)))
	return points, nil
}

// Rank сортирует точки по убыванию Sharpe, затем по убыванию суммарной доходности
func Rank(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i].Summary, points[j].Summary
		if a.SharpeRatio != b.SharpeRatio {
			return a.SharpeRatio > b.SharpeRatio
		}
		return a.TotalReturn > b.TotalReturn
	})
}
