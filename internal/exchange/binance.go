package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
)

// Максимальный размер страницы свечей
const (
	futuresKlineLimit = 1500
	spotKlineLimit    = 1000
)

// BinanceClient клиент для загрузки истории с Binance
type BinanceClient struct {
	futures *futures.Client
	spot    *binance.Client
	market  string
	delay   time.Duration
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	if cfg.Testnet {
		futures.UseTestnet = true
		binance.UseTestnet = true
	}

	if cfg.Market != "futures" && cfg.Market != "spot" {
		return nil, fmt.Errorf("неизвестный рынок Binance: %q", cfg.Market)
	}

	return &BinanceClient{
		futures: futures.NewClient(cfg.APIKey, cfg.APISecret),
		spot:    binance.NewClient(cfg.APIKey, cfg.APISecret),
		market:  cfg.Market,
		delay:   time.Duration(cfg.RequestDelayMs) * time.Millisecond,
	}, nil
}

// GetKlinesRange получает свечи с open time в [start, end), постранично
func (c *BinanceClient) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*models.Candle, error) {
	limit := futuresKlineLimit
	if c.market == "spot" {
		limit = spotKlineLimit
	}

	var candles []*models.Candle
	cursor := start.UnixMilli()
	stop := end.UnixMilli() - 1

	for page := 0; cursor <= stop; page++ {
		if page > 0 {
			if err := c.pause(ctx); err != nil {
				return nil, err
			}
		}

		batch, err := c.klinesPage(ctx, symbol, interval, cursor, stop, limit)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения свечей %s: %w", symbol, err)
		}
		candles = append(candles, batch...)

		if len(batch) < limit {
			break
		}
		cursor = batch[len(batch)-1].OpenTime.UnixMilli() + 1
	}

	logger.Debug("Загружены свечи Binance",
		zap.String("symbol", symbol),
		zap.String("market", c.market),
		zap.Int("свечей", len(candles)))

	return candles, nil
}

// klinesPage загружает одну страницу свечей с выбранного рынка
func (c *BinanceClient) klinesPage(ctx context.Context, symbol, interval string, from, to int64, limit int) ([]*models.Candle, error) {
	if c.market == "spot" {
		klines, err := c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from).
			EndTime(to).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return nil, err
		}

		candles := make([]*models.Candle, 0, len(klines))
		for _, k := range klines {
			candle, err := parseKline(symbol, interval, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
			if err != nil {
				return nil, err
			}
			candles = append(candles, candle)
		}
		return candles, nil
	}

	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(from).
		EndTime(to).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(symbol, interval, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// TopSymbols возвращает n символов с котировкой quote и наибольшим 24h оборотом в котируемой валюте
func (c *BinanceClient) TopSymbols(ctx context.Context, quote string, n int) ([]string, error) {
	turnover := make(map[string]float64)

	if c.market == "spot" {
		stats, err := c.spot.NewListPriceChangeStatsService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения статистики 24h: %w", err)
		}
		for _, s := range stats {
			turnover[s.Symbol], _ = strconv.ParseFloat(s.QuoteVolume, 64)
		}
	} else {
		stats, err := c.futures.NewListPriceChangeStatsService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения статистики 24h: %w", err)
		}
		for _, s := range stats {
			turnover[s.Symbol], _ = strconv.ParseFloat(s.QuoteVolume, 64)
		}
	}

	symbols := rankByTurnover(turnover, quote, n)
	logger.Info("Определен набор активов по обороту",
		zap.String("quote", quote),
		zap.Strings("symbols", symbols))
	return symbols, nil
}

// rankByTurnover отбирает символы с нужной котировкой и сортирует их по обороту
func rankByTurnover(turnover map[string]float64, quote string, n int) []string {
	symbols := lo.Filter(lo.Keys(turnover), func(s string, _ int) bool {
		// Символы поставочных фьючерсов содержат дату через подчеркивание
		return strings.HasSuffix(s, quote) && s != quote && !strings.Contains(s, "_")
	})
	sort.Slice(symbols, func(i, j int) bool {
		if turnover[symbols[i]] != turnover[symbols[j]] {
			return turnover[symbols[i]] > turnover[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})
	if n > 0 && len(symbols) > n {
		symbols = symbols[:n]
	}
	return symbols
}

// pause выдерживает паузу между страницами запросов
func (c *BinanceClient) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseKline конвертирует строковые поля свечи Binance в числа
func parseKline(symbol, interval string, openTime, closeTime int64, fields ...string) (*models.Candle, error) {
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора свечи %s: %w", symbol, err)
		}
		values[i] = v
	}

	return &models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(openTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(closeTime).UTC(),
	}, nil
}
