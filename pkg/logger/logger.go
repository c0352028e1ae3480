package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Глобальный экземпляр логгера
var (
	globalLogger = zap.NewNop()
	mu           sync.RWMutex
)

// Options настройки файлового логгера
type Options struct {
	Level    string // debug, info, warn, error
	File     string // читаемый лог
	JSONFile string // JSON лог, его читает UI
	Truncate bool   // очищать JSON лог при запуске
}

// DefaultOptions возвращает настройки по умолчанию
func DefaultOptions() Options {
	return Options{
		Level:    "debug",
		File:     "app.log",
		JSONFile: "app.json.log",
		Truncate: true,
	}
}

// Init инициализирует глобальный логгер. До вызова Init логгер ничего не пишет.
func Init(opts Options) error {
	l, err := newLogger(opts)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// GetLogger возвращает глобальный экземпляр логгера
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// newLogger создает логгер с записью в два файла
func newLogger(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", opts.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("02.01.2006 - 15:04:05.000000000Z07:00")
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	// В читаемом файле уровни раскрашены, в JSON - нет, чтобы UI мог их разобрать
	readableConfig := encoderConfig
	readableConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	readableFileEncoder := zapcore.NewConsoleEncoder(readableConfig)
	jsonFileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	readableFile, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла лога: %w", err)
	}

	jsonFlags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if opts.Truncate {
		// Очистка логов при перезапуске
		jsonFlags |= os.O_TRUNC
	}
	jsonFile, err := os.OpenFile(opts.JSONFile, jsonFlags, 0644)
	if err != nil {
		readableFile.Close()
		return nil, fmt.Errorf("ошибка открытия JSON лога: %w", err)
	}

	// Консоль не используется: вывод в stdout ломает экран UI
	core := zapcore.NewTee(
		zapcore.NewCore(readableFileEncoder, zapcore.AddSync(readableFile), level),
		zapcore.NewCore(jsonFileEncoder, zapcore.AddSync(jsonFile), level),
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}
