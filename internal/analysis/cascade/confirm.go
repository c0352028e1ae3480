package cascade

import (
	"fmt"

	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/pkg/logger"
	"go.uber.org/zap"
)

// Confirm оставляет только сигналы, после которых цена отскочила: доходность на
// bounce_confirm_horizon интервалов вперед строго положительна. Если доходность
// не определена (край ряда, пропуск), сигнал отбрасывается.
func (d *Detector) Confirm(signals *market.Mask, price *market.Matrix) (*market.Mask, error) {
	if err := market.CheckMaskAligned(signals, price); err != nil {
		return nil, fmt.Errorf("ошибка подтверждения сигналов: %w", err)
	}

	horizon := d.config.BounceConfirmHorizon
	confirmed := market.NewMask(signals.Index, signals.Symbols)
	for j, col := range signals.Columns {
		forward := market.ForwardReturn(price.Columns[j], horizon)
		for t, on := range col {
			confirmed.Columns[j][t] = on && forward[t] > 0
		}
	}
	return confirmed, nil
}

// Tradable выполняет полный протокол: обнаружение, подтверждение отскоком и сдвиг
// вперед на горизонт подтверждения. Сигнал в момент t+h зависит только от данных до t+h.
func (d *Detector) Tradable(price, volume *market.Matrix) (*Detection, *market.Mask, error) {
	detection, err := d.Detect(price, volume)
	if err != nil {
		return nil, nil, err
	}

	confirmed, err := d.Confirm(detection.Signals, price)
	if err != nil {
		return nil, nil, err
	}

	tradable := confirmed.Shift(d.config.BounceConfirmHorizon)

	logger.Debug("Сигналы подтверждены и сдвинуты",
		zap.Int("до_подтверждения", detection.Signals.Count()),
		zap.Int("торгуемых", tradable.Count()),
		zap.Int("сдвиг", d.config.BounceConfirmHorizon))

	return detection, tradable, nil
}
