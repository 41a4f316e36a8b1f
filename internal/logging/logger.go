package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"safewipe_enterprise/internal/config"
)

// Enterprise логгер с аудитом (zap-backed)
type EnterpriseLogger struct {
	core    *zap.Logger
	level   zapcore.Level
	siem    bool
	verbose bool
	file    *os.File
}

// NewEnterpriseLogger создает логгер согласно конфигурации.
// Если файл логов недоступен, логи уходят в stdout.
func NewEnterpriseLogger(cfg *config.Config, verbose bool) (*EnterpriseLogger, error) {
	level := parseLevel(cfg.Logging.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	var logFile *os.File

	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Printf("[WARN] Не удалось создать директорию логов %s: %v\n", logDir, err)
			fmt.Printf("[WARN] Логи будут выводиться в stdout\n")
		} else {
			f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				fmt.Printf("[WARN] Не удалось открыть файл логов %s: %v\n", cfg.Logging.File, err)
				fmt.Printf("[WARN] Логи будут выводиться в stdout\n")
			} else {
				logFile = f
				cores = append(cores, zapcore.NewCore(
					zapcore.NewJSONEncoder(encoderCfg),
					zapcore.Lock(f),
					level,
				))
			}
		}
	}

	// stdout: при verbose всё, иначе только ошибки
	stdoutLevel := zapcore.ErrorLevel
	if verbose || logFile == nil {
		stdoutLevel = level
	}
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		stdoutLevel,
	))

	return &EnterpriseLogger{
		core:    zap.New(zapcore.NewTee(cores...)),
		level:   level,
		siem:    cfg.Logging.SIEMEnabled,
		verbose: verbose,
		file:    logFile,
	}, nil
}

// NewNopLogger возвращает логгер, который ничего не пишет (для тестов)
func NewNopLogger() *EnterpriseLogger {
	return &EnterpriseLogger{core: zap.NewNop(), level: zapcore.InfoLevel}
}

// Log пишет запись с уровнем и парами ключ-значение
func (l *EnterpriseLogger) Log(level, message string, fields ...interface{}) {
	zf := toZapFields(fields)

	switch level {
	case "DEBUG":
		l.core.Debug(message, zf...)
	case "INFO":
		l.core.Info(message, zf...)
	case "WARN":
		l.core.Warn(message, zf...)
	case "ERROR":
		l.core.Error(message, zf...)
	case "FATAL":
		l.core.Error(message, zf...)
		_ = l.core.Sync()
		os.Exit(1)
	default:
		l.core.Info(message, zf...)
	}

	// SIEM интеграция
	if l.siem && (level == "ERROR" || level == "WARN" || level == "FATAL") {
		// Отправка в SIEM систему
	}
}

// toZapFields конвертирует пары ключ-значение в zap поля
func toZapFields(fields []interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		zf = append(zf, zap.Any(key, fields[i+1]))
	}
	return zf
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *EnterpriseLogger) Close() error {
	_ = l.core.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
