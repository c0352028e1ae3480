package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skalibog/cascade/internal/analysis/aggregator"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/exchange"
	"github.com/skalibog/cascade/internal/storage"
	"github.com/skalibog/cascade/internal/sweep"
	"github.com/skalibog/cascade/internal/ui"
	"github.com/skalibog/cascade/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	plain := flag.Bool("plain", false, "вывести текстовый отчет без интерактивного интерфейса")
	sweepMode := flag.Bool("sweep", false, "перебрать сетку параметров из секции sweep")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	opts := logger.DefaultOptions()
	opts.Level = cfg.Logging.Level
	opts.File = cfg.Logging.File
	opts.JSONFile = cfg.Logging.JSONFile
	if err := logger.Init(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.GetLogger().Sync()

	logger.Info("Запуск", zap.String("config", *configPath), zap.Bool("sweep", *sweepMode))

	// Отмена загрузки по сигналу завершения
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *plain, *sweepMode); err != nil {
		logger.Error("Ошибка выполнения", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, plain, sweepMode bool) error {
	// Инициализируем хранилище
	var store storage.Storage
	if cfg.Storage.Enabled {
		influx, err := storage.NewInfluxDBStorage(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("ошибка инициализации хранилища: %w", err)
		}
		defer influx.Close()
		store = influx
	}

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента биржи: %w", err)
	}

	provider := exchange.NewProvider(*cfg, client, client, store)
	price, volume, err := provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки данных: %w", err)
	}

	if sweepMode {
		points, err := sweep.NewRunner(cfg.Strategy, cfg.Backtest, cfg.Sweep).Run(ctx, price, volume, cfg.Data.Benchmark)
		if err != nil {
			return fmt.Errorf("ошибка перебора параметров: %w", err)
		}
		fmt.Println(ui.RenderSweep(points))
		return nil
	}

	result, err := aggregator.NewAnalyzer(cfg.Strategy, cfg.Backtest).Run(price, volume, cfg.Data.Benchmark)
	if err != nil {
		return err
	}

	if plain || !cfg.UI.Interactive {
		fmt.Println(ui.RenderReport(result, cfg.UI))
		return nil
	}

	// Запускаем UI в основном потоке (блокирующий вызов)
	return ui.NewTermUI(cfg.UI, result, cfg.Logging.JSONFile).Run(ctx)
}
