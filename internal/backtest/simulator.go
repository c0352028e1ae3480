// Package backtest превращает торгуемые сигналы в поток смоделированных сделок.
package backtest

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
)

// Simulator моделирует сделки на отскок после каскада
type Simulator struct {
	config config.BacktestConfig
}

// NewSimulator создает новый симулятор
func NewSimulator(cfg config.BacktestConfig) *Simulator {
	return &Simulator{
		config: cfg,
	}
}

// Run проходит по сигналам в хронологическом порядке, внутри одного момента - в порядке активов.
// Сигнал уже должен быть сдвинут детектором, вход происходит в момент сигнала.
//
// Длительность удержания выбирается по уже реализованной быстрой доходности: если она выше
// fast_exit_threshold, позиция закрывается через fast_hold интервалов, иначе через slow_hold.
// В реальной торговле такое решение заранее недоступно, это упрощение бэктеста.
//
// Одновременные и перекрывающиеся сделки по одному активу не подавляются: капитал не ограничен.
func (s *Simulator) Run(tradable *market.Mask, price *market.Matrix) ([]models.TradeRecord, error) {
	if err := market.CheckMaskAligned(tradable, price); err != nil {
		return nil, fmt.Errorf("ошибка симуляции: %w", err)
	}

	fast := make([][]float64, len(price.Symbols))
	slow := make([][]float64, len(price.Symbols))
	for j, col := range price.Columns {
		fast[j] = market.ForwardReturn(col, s.config.FastHold)
		slow[j] = market.ForwardReturn(col, s.config.SlowHold)
	}

	var trades []models.TradeRecord
	skipped := 0

	for t, ts := range price.Index {
		for j, symbol := range price.Symbols {
			if !tradable.Columns[j][t] {
				continue
			}

			fastReturn, slowReturn := fast[j][t], slow[j][t]
			if !defined(fastReturn) || !defined(slowReturn) {
				// Недостаточно данных на краю ряда
				skipped++
				continue
			}

			holding, gross := s.config.SlowHold, slowReturn
			if fastReturn > s.config.FastExitThreshold {
				holding, gross = s.config.FastHold, fastReturn
			}

			trades = append(trades, models.TradeRecord{
				EntryTime:     ts,
				Symbol:        symbol,
				HoldingPeriod: holding,
				GrossReturn:   gross,
				NetReturn:     gross - s.config.TransactionCost,
			})
		}
	}

	logger.Info("Симуляция завершена",
		zap.Int("сделок", len(trades)),
		zap.Int("пропущено_на_краю", skipped))

	return trades, nil
}

// NetReturns возвращает ряд чистых доходностей сделок без временного индекса
func NetReturns(trades []models.TradeRecord) []float64 {
	return lo.Map(trades, func(t models.TradeRecord, _ int) float64 {
		return t.NetReturn
	})
}

func defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
