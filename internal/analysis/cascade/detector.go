// Package cascade реализует детектор каскадов ликвидаций по матрицам цен и объемов.
package cascade

import (
	"fmt"

	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
)

// Detector находит каскады ликвидаций, подтвержденные кворумом активов
type Detector struct {
	config config.StrategyConfig
}

// NewDetector создает новый детектор каскадов
func NewDetector(cfg config.StrategyConfig) *Detector {
	return &Detector{
		config: cfg,
	}
}

// Config возвращает параметры детектора
func (d *Detector) Config() config.StrategyConfig {
	return d.config
}

// Detection результат работы детектора
type Detection struct {
	// Raw локальные сигналы активов до проверки кворума
	Raw *market.Mask
	// Signals сигналы после кворума: строки с числом сигналов меньше min_assets обнулены
	Signals *market.Mask
	// Counts число локальных сигналов в каждый момент времени
	Counts []int
	// Events события, пережившие кворум, в хронологическом порядке
	Events []models.CascadeEvent
}

// assetSeries промежуточные ряды одного актива
type assetSeries struct {
	flags    []bool
	patterns []string
	r1       []float64
	r2       []float64
	vtHigh   []float64
}

// Detect вычисляет матрицу сигналов. Матрицы должны быть выровнены, иначе расчет не начинается.
func (d *Detector) Detect(price, volume *market.Matrix) (*Detection, error) {
	if err := market.CheckAligned(price, volume); err != nil {
		return nil, fmt.Errorf("ошибка проверки входных данных: %w", err)
	}

	// Проход 1: локальные условия по каждому активу независимо
	raw := market.NewMask(price.Index, price.Symbols)
	series := make([]assetSeries, len(price.Symbols))
	for j := range price.Symbols {
		series[j] = d.detectAsset(price.Columns[j], volume.Columns[j])
		raw.Columns[j] = series[j].flags
	}

	// Проход 2: кворум по срезу активов в каждый момент времени
	counts := make([]int, len(price.Index))
	signals := market.NewMask(price.Index, price.Symbols)
	var events []models.CascadeEvent

	for t := range price.Index {
		counts[t] = raw.RowCount(t)
		if counts[t] < d.config.MinAssets {
			continue
		}
		for j, symbol := range price.Symbols {
			if !raw.Columns[j][t] {
				continue
			}
			signals.Columns[j][t] = true
			events = append(events, models.CascadeEvent{
				Timestamp:   price.Index[t],
				Symbol:      symbol,
				Pattern:     series[j].patterns[t],
				Return1:     series[j].r1[t],
				Return2:     series[j].r2[t],
				Volume:      volume.Columns[j][t],
				VolumeHigh:  series[j].vtHigh[t],
				AssetsCount: counts[t],
			})
		}
	}

	logger.Debug("Детектор каскадов завершен",
		zap.Int("локальных_сигналов", raw.Count()),
		zap.Int("сигналов_после_кворума", signals.Count()),
		zap.Int("min_assets", d.config.MinAssets))

	return &Detection{
		Raw:     raw,
		Signals: signals,
		Counts:  counts,
		Events:  events,
	}, nil
}

// detectAsset проверяет паттерны падения и подтверждение объемом для одного актива
func (d *Detector) detectAsset(closes, volumes []float64) assetSeries {
	cfg := d.config
	n := len(closes)

	s := assetSeries{
		flags:    make([]bool, n),
		patterns: make([]string, n),
		r1:       market.PctChange(closes, 1),
		r2:       market.PctChange(closes, 2),
		vtHigh:   rollingQuantile(volumes, cfg.RollingWindow, cfg.VolPercentileHigh/100),
	}
	vtMid := rollingQuantile(volumes, cfg.RollingWindow, cfg.VolPercentileMid/100)

	first := market.FirstDefined(closes)
	if first < 0 {
		return s
	}

	strongLevel := -cfg.InitialDrop
	extremeLevel := -(cfg.InitialDrop * cfg.ExtremeDropMultiplier)
	cascadeLevel := -(cfg.InitialDrop + cfg.CascadeDrop)

	for t := first + cfg.RollingWindow; t < n; t++ {
		r1, r2, v := s.r1[t], s.r2[t], volumes[t]
		// Неопределенные значения никогда не дают сигнал
		if isMissing(r1) || isMissing(v) {
			continue
		}

		strongDrop := r1 < strongLevel
		extremeDrop := r1 < extremeLevel
		cascade := !isMissing(r2) && r2 < cascadeLevel && r1 > -cfg.CascadeDrop

		extremeVol := !isMissing(s.vtHigh[t]) && v > s.vtHigh[t]
		highVol := !isMissing(vtMid[t]) && v > vtMid[t]

		switch {
		case extremeDrop && extremeVol:
			s.patterns[t] = models.PatternExtremeDrop
		case strongDrop && extremeVol:
			s.patterns[t] = models.PatternStrongDrop
		case cascade && highVol:
			s.patterns[t] = models.PatternCascade
		default:
			continue
		}
		s.flags[t] = true
	}
	return s
}
