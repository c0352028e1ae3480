package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/skalibog/cascade/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// ErrInvalid возвращается, если конфигурация не прошла проверку
var ErrInvalid = errors.New("некорректная конфигурация")

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Data     DataConfig     `yaml:"data"`
	Strategy StrategyConfig `yaml:"strategy"`
	Backtest BacktestConfig `yaml:"backtest"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Storage  StorageConfig  `yaml:"storage"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	Market    string `yaml:"market"` // futures или spot
	// Пауза между страницами запросов свечей, мс
	RequestDelayMs int `yaml:"request_delay_ms"`
	Concurrency    int `yaml:"concurrency"`
}

// DataConfig описывает набор активов и период истории
type DataConfig struct {
	Symbols      []string `yaml:"symbols"`
	UniverseSize int      `yaml:"universe_size"` // используется, если symbols пуст
	QuoteAsset   string   `yaml:"quote_asset"`
	Benchmark    string   `yaml:"benchmark"`
	Interval     string   `yaml:"interval"`
	Start        string   `yaml:"start"` // RFC3339
	End          string   `yaml:"end"`   // RFC3339, пусто - текущее время
	Source       string   `yaml:"source"` // binance или influxdb
}

// StrategyConfig параметры детектора каскадов
type StrategyConfig struct {
	InitialDrop           float64 `yaml:"initial_drop"`
	CascadeDrop           float64 `yaml:"cascade_drop"`
	ExtremeDropMultiplier float64 `yaml:"extreme_drop_multiplier"`
	VolPercentileHigh     float64 `yaml:"vol_percentile_high"`
	VolPercentileMid      float64 `yaml:"vol_percentile_mid"`
	MinAssets             int     `yaml:"min_assets"`
	RollingWindow         int     `yaml:"rolling_window"`
	BounceConfirmHorizon  int     `yaml:"bounce_confirm_horizon"`
}

// BacktestConfig параметры симуляции сделок и статистики
type BacktestConfig struct {
	FastExitThreshold    float64 `yaml:"fast_exit_threshold"`
	FastHold             int     `yaml:"fast_hold"`
	SlowHold             int     `yaml:"slow_hold"`
	TransactionCost      float64 `yaml:"transaction_cost"`
	MinRegressionSamples int     `yaml:"min_regression_samples"`
	DaysPerYear          float64 `yaml:"days_per_year"`
}

// SweepConfig сетка параметров для перебора
type SweepConfig struct {
	InitialDrops []float64 `yaml:"initial_drops"`
	CascadeDrops []float64 `yaml:"cascade_drops"`
	MinAssets    []int     `yaml:"min_assets"`
	Workers      int       `yaml:"workers"`
}

// StorageConfig настройки хранения свечей
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Interactive bool `yaml:"interactive"`
	MaxTrades   int  `yaml:"max_trades"`
	MaxEvents   int  `yaml:"max_events"`
}

// LoggingConfig настройки логирования
type LoggingConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() Config {
	return Config{
		Binance: BinanceConfig{
			Market:         "futures",
			RequestDelayMs: 250,
			Concurrency:    4,
		},
		Data: DataConfig{
			UniverseSize: 20,
			QuoteAsset:   "USDT",
			Benchmark:    "BTCUSDT",
			Interval:     "1h",
			Source:       "binance",
		},
		Strategy: DefaultStrategy(),
		Backtest: DefaultBacktest(),
		Sweep: SweepConfig{
			Workers: 4,
		},
		UI: UIConfig{
			Interactive: true,
			MaxTrades:   500,
			MaxEvents:   200,
		},
		Logging: LoggingConfig{
			Level:    "info",
			File:     "app.log",
			JSONFile: "app.json.log",
		},
	}
}

// DefaultStrategy параметры детектора по умолчанию
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		InitialDrop:           0.05,
		CascadeDrop:           0.03,
		ExtremeDropMultiplier: 1.6,
		VolPercentileHigh:     95,
		VolPercentileMid:      90,
		MinAssets:             3,
		RollingWindow:         168,
		BounceConfirmHorizon:  1,
	}
}

// DefaultBacktest параметры симуляции по умолчанию
func DefaultBacktest() BacktestConfig {
	return BacktestConfig{
		FastExitThreshold:    0.02,
		FastHold:             1,
		SlowHold:             2,
		TransactionCost:      0.002,
		MinRegressionSamples: 50,
		DaysPerYear:          365.25,
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("strategy", config.Strategy))
	logger.Info("Загружена конфигурация", zap.Strings("symbols", config.Data.Symbols))
	return &config, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}

	if c.Binance.Market != "futures" && c.Binance.Market != "spot" {
		return invalid("binance.market должен быть futures или spot, получено %q", c.Binance.Market)
	}
	if c.Data.Source != "binance" && c.Data.Source != "influxdb" {
		return invalid("data.source должен быть binance или influxdb, получено %q", c.Data.Source)
	}
	if c.Data.Source == "influxdb" && !c.Storage.Enabled {
		return invalid("data.source=influxdb требует storage.enabled")
	}
	if len(c.Data.Symbols) == 0 && c.Data.UniverseSize < 1 {
		return invalid("нужен список data.symbols или data.universe_size > 0")
	}
	if c.Data.Benchmark == "" {
		return invalid("не задан data.benchmark")
	}
	if _, err := IntervalDuration(c.Data.Interval); err != nil {
		return invalid("data.interval: %v", err)
	}

	start, end, err := c.Data.Period(time.Now())
	if err != nil {
		return invalid("%v", err)
	}
	if !start.Before(end) {
		return invalid("data.start должен быть раньше data.end")
	}

	for _, d := range c.Sweep.InitialDrops {
		if d <= 0 || d >= 1 {
			return invalid("sweep.initial_drops: значение %v вне (0, 1)", d)
		}
	}
	for _, d := range c.Sweep.CascadeDrops {
		if d <= 0 || d >= 1 {
			return invalid("sweep.cascade_drops: значение %v вне (0, 1)", d)
		}
	}
	for _, n := range c.Sweep.MinAssets {
		if n < 1 {
			return invalid("sweep.min_assets: значение %d меньше 1", n)
		}
	}
	return nil
}

// Validate проверяет параметры детектора
func (s StrategyConfig) Validate() error {
	switch {
	case s.InitialDrop <= 0 || s.InitialDrop >= 1:
		return invalid("strategy.initial_drop вне (0, 1): %v", s.InitialDrop)
	case s.CascadeDrop <= 0 || s.CascadeDrop >= 1:
		return invalid("strategy.cascade_drop вне (0, 1): %v", s.CascadeDrop)
	case s.ExtremeDropMultiplier < 1:
		return invalid("strategy.extreme_drop_multiplier меньше 1: %v", s.ExtremeDropMultiplier)
	case s.VolPercentileHigh <= 0 || s.VolPercentileHigh > 100:
		return invalid("strategy.vol_percentile_high вне (0, 100]: %v", s.VolPercentileHigh)
	case s.VolPercentileMid <= 0 || s.VolPercentileMid > s.VolPercentileHigh:
		return invalid("strategy.vol_percentile_mid вне (0, vol_percentile_high]: %v", s.VolPercentileMid)
	case s.MinAssets < 1:
		return invalid("strategy.min_assets меньше 1: %d", s.MinAssets)
	case s.RollingWindow < 2:
		return invalid("strategy.rolling_window меньше 2: %d", s.RollingWindow)
	case s.BounceConfirmHorizon < 1:
		return invalid("strategy.bounce_confirm_horizon меньше 1: %d", s.BounceConfirmHorizon)
	}
	return nil
}

// Validate проверяет параметры симуляции
func (b BacktestConfig) Validate() error {
	switch {
	case b.FastHold < 1:
		return invalid("backtest.fast_hold меньше 1: %d", b.FastHold)
	case b.SlowHold <= b.FastHold:
		return invalid("backtest.slow_hold должен быть больше fast_hold: %d <= %d", b.SlowHold, b.FastHold)
	case b.TransactionCost < 0:
		return invalid("backtest.transaction_cost отрицательный: %v", b.TransactionCost)
	case b.MinRegressionSamples < 2:
		return invalid("backtest.min_regression_samples меньше 2: %d", b.MinRegressionSamples)
	case b.DaysPerYear <= 0:
		return invalid("backtest.days_per_year должен быть положительным: %v", b.DaysPerYear)
	}
	return nil
}

// Period разбирает границы истории. Пустой end означает now.
func (d DataConfig) Period(now time.Time) (time.Time, time.Time, error) {
	if d.Start == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("не задан data.start")
	}
	start, err := time.Parse(time.RFC3339, d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ошибка разбора data.start: %w", err)
	}

	end := now.UTC()
	if d.End != "" {
		end, err = time.Parse(time.RFC3339, d.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("ошибка разбора data.end: %w", err)
		}
	}
	return start.UTC(), end.UTC(), nil
}

// IntervalDuration конвертирует строковый интервал Binance в duration
func IntervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "3m":
		return 3 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "2h":
		return 2 * time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "6h":
		return 6 * time.Hour, nil
	case "8h":
		return 8 * time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "3d":
		return 72 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("неизвестный интервал %q", interval)
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
