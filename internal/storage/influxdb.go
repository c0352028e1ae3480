// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/pkg/logger"
	"github.com/skalibog/cascade/pkg/models"
	"go.uber.org/zap"
)

const candlesMeasurement = "candles"

// Storage интерфейс хранилища исторических свечей
type Storage interface {
	SaveCandles(ctx context.Context, candles []*models.Candle) error
	GetCandlesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*models.Candle, error)
	GetSymbols(ctx context.Context, interval string) ([]string, error)
	Close()
}

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	logger.Info("Подключено хранилище InfluxDB",
		zap.String("url", cfg.URL),
		zap.String("bucket", cfg.Bucket))

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveCandles сохраняет свечи одним пакетом
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	points := make([]*write.Point, len(candles))
	for i, candle := range candles {
		points[i] = candlePoint(candle)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей %s: %w", candles[0].Symbol, err)
	}

	logger.Debug("Свечи сохранены в InfluxDB",
		zap.String("symbol", candles[0].Symbol),
		zap.Int("свечей", len(candles)))
	return nil
}

// GetCandlesRange получает свечи с open time в [start, end) по возрастанию времени
func (s *InfluxDBStorage) GetCandlesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*models.Candle, error) {
	step, err := config.IntervalDuration(interval)
	if err != nil {
		return nil, err
	}

	// Выполняем запрос
	result, err := s.queryAPI.Query(ctx, candlesQuery(s.bucket, symbol, interval, start, end))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}

	// Обрабатываем результаты
	var candles []*models.Candle
	for result.Next() {
		record := result.Record()

		timestamp := record.Time()
		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		close, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candles = append(candles, &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  timestamp.UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: timestamp.UTC().Add(step - time.Millisecond),
		})
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return candles, nil
}

// GetSymbols возвращает символы, по которым есть свечи заданного интервала
func (s *InfluxDBStorage) GetSymbols(ctx context.Context, interval string) ([]string, error) {
	// Формируем Flux-запрос для получения уникальных символов
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: 0)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> keep(columns: ["symbol"])
			|> group()
			|> distinct(column: "symbol")
	`, s.bucket, candlesMeasurement, interval)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса символов: %w", err)
	}

	var symbols []string
	for result.Next() {
		symbol, _ := result.Record().Value().(string)
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return symbols, nil
}

// candlePoint строит точку InfluxDB из свечи
func candlePoint(candle *models.Candle) *write.Point {
	return influxdb2.NewPoint(
		candlesMeasurement,
		map[string]string{
			"symbol":   candle.Symbol,
			"interval": candle.Interval,
		},
		map[string]interface{}{
			"open":   candle.Open,
			"high":   candle.High,
			"low":    candle.Low,
			"close":  candle.Close,
			"volume": candle.Volume,
		},
		candle.OpenTime,
	)
}

// candlesQuery формирует Flux-запрос свечей за период
func candlesQuery(bucket, symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, bucket, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
		candlesMeasurement, symbol, interval)
}
