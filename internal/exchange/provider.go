package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market"
	"github.com/skalibog/cascade/internal/storage"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoData возвращается, если для бенчмарка или всего набора нет свечей
var ErrNoData = errors.New("нет исторических данных")

// CandleSource источник исторических свечей
type CandleSource interface {
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*models.Candle, error)
}

// UniverseSource источник списка наиболее ликвидных активов
type UniverseSource interface {
	TopSymbols(ctx context.Context, quote string, n int) ([]string, error)
}

// Provider загружает историю по набору активов и строит выровненные матрицы
type Provider struct {
	config   config.Config
	source   CandleSource
	universe UniverseSource
	storage  storage.Storage

	mu    sync.Mutex
	cache map[string][]*models.Candle
}

// NewProvider создает провайдер данных. universe и store могут быть nil.
func NewProvider(cfg config.Config, source CandleSource, universe UniverseSource, store storage.Storage) *Provider {
	return &Provider{
		config:   cfg,
		source:   source,
		universe: universe,
		storage:  store,
		cache:    make(map[string][]*models.Candle),
	}
}

// Symbols возвращает набор активов: явный список из конфигурации или топ по обороту.
// Бенчмарк всегда входит в набор.
func (p *Provider) Symbols(ctx context.Context) ([]string, error) {
	symbols := p.config.Data.Symbols
	if len(symbols) == 0 {
		switch {
		case p.config.Data.Source == "influxdb" && p.storage != nil:
			stored, err := p.storage.GetSymbols(ctx, p.config.Data.Interval)
			if err != nil {
				return nil, fmt.Errorf("ошибка получения списка активов из хранилища: %w", err)
			}
			symbols = stored
		case p.universe != nil:
			top, err := p.universe.TopSymbols(ctx, p.config.Data.QuoteAsset, p.config.Data.UniverseSize)
			if err != nil {
				return nil, err
			}
			symbols = top
		default:
			return nil, fmt.Errorf("не задан список активов и нет источника для его определения")
		}
	}

	symbols = lo.Uniq(symbols)
	if !lo.Contains(symbols, p.config.Data.Benchmark) {
		symbols = append([]string{p.config.Data.Benchmark}, symbols...)
	}
	return symbols, nil
}

// Load загружает свечи всех активов параллельно и строит матрицы цен закрытия и объемов.
// Активы без свечей исключаются с предупреждением.
func (p *Provider) Load(ctx context.Context) (*market.Matrix, *market.Matrix, error) {
	symbols, err := p.Symbols(ctx)
	if err != nil {
		return nil, nil, err
	}

	start, end, err := p.config.Data.Period(time.Now())
	if err != nil {
		return nil, nil, err
	}
	step, err := config.IntervalDuration(p.config.Data.Interval)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu      sync.Mutex
		candles = make(map[string][]*models.Candle, len(symbols))
		g, gctx = errgroup.WithContext(ctx)
	)
	if p.config.Binance.Concurrency > 0 {
		g.SetLimit(p.config.Binance.Concurrency)
	}

	for _, symbol := range symbols {
		local := symbol
		g.Go(func() error {
			series, err := p.Candles(gctx, local, start, end)
			if err != nil {
				return err
			}
			mu.Lock()
			candles[local] = series
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	kept := lo.Filter(symbols, func(s string, _ int) bool {
		if len(candles[s]) == 0 {
			logger.Warn("Нет свечей по активу, актив исключен", zap.String("symbol", s))
			return false
		}
		return true
	})
	if !lo.Contains(kept, p.config.Data.Benchmark) {
		return nil, nil, fmt.Errorf("%w: бенчмарк %s", ErrNoData, p.config.Data.Benchmark)
	}

	price, volume, err := market.FromCandles(candles, kept, step)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка построения матриц: %w", err)
	}

	logger.Info("Исторические данные загружены",
		zap.Int("активов", len(kept)),
		zap.Int("интервалов", price.Len()),
		zap.Time("start", start),
		zap.Time("end", end))

	return price, volume, nil
}

// Candles возвращает свечи актива за период. Повторный запрос того же периода
// обслуживается из памяти.
func (p *Provider) Candles(ctx context.Context, symbol string, start, end time.Time) ([]*models.Candle, error) {
	interval := p.config.Data.Interval
	key := fmt.Sprintf("%s|%s|%d|%d", symbol, interval, start.Unix(), end.Unix())

	p.mu.Lock()
	cached, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	candles, err := p.fetch(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = candles
	p.mu.Unlock()
	return candles, nil
}

// fetch читает свечи из хранилища, если оно покрывает период, иначе с биржи
func (p *Provider) fetch(ctx context.Context, symbol, interval string, start, end time.Time) ([]*models.Candle, error) {
	if p.storage != nil {
		stored, err := p.storage.GetCandlesRange(ctx, symbol, interval, start, end)
		if err != nil {
			if p.config.Data.Source == "influxdb" {
				return nil, err
			}
			logger.Warn("Ошибка чтения свечей из хранилища", zap.String("symbol", symbol), zap.Error(err))
		}
		if p.config.Data.Source == "influxdb" || covers(stored, interval, start, end) {
			logger.Debug("Свечи прочитаны из хранилища", zap.String("symbol", symbol), zap.Int("свечей", len(stored)))
			return stored, nil
		}
	}

	if p.source == nil {
		return nil, fmt.Errorf("не задан источник свечей для %s", symbol)
	}
	candles, err := p.source.GetKlinesRange(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	if p.storage != nil && len(candles) > 0 {
		if err := p.storage.SaveCandles(ctx, candles); err != nil {
			logger.Warn("Не удалось сохранить свечи в хранилище", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return candles, nil
}

// covers проверяет, что сохраненные свечи покрывают период целиком
func covers(candles []*models.Candle, interval string, start, end time.Time) bool {
	if len(candles) == 0 {
		return false
	}
	step, err := config.IntervalDuration(interval)
	if err != nil {
		return false
	}
	first := candles[0].OpenTime
	last := candles[len(candles)-1].OpenTime
	return !first.After(start.Add(step-1)) && !last.Before(end.Add(-2*step))
}
