package logging

import (
	"github.com/hilthontt/eventrelay/internal/infrastructure/env"
	"go.uber.org/zap"
)

type Logger interface {
	Init()

	Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Debugf(template string, args ...any)

	Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Infof(template string, args ...any)

	Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Warnf(template string, args ...any)

	Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Errorf(template string, args ...any)

	Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Fatalf(template string, args ...any)
}

type LoggerConfig struct {
	FilePath string
	Encoding string
	Level    string
	Logger   string
	Service  string
	// Console mirrors every entry to stdout next to the rotated file.
	Console bool
}

func NewDefaultConfig(service string) *LoggerConfig {
	return &LoggerConfig{
		FilePath: env.GetString("LOGGER_FILE_PATH", "./logs/"),
		Encoding: env.GetString("LOGGER_ENCODING", "json"),
		Level:    env.GetString("LOGGER_LEVEL", "debug"),
		Logger:   env.GetString("LOGGER_LOGGER", "zap"),
		Service:  service,
		Console:  env.GetBool("LOGGER_CONSOLE", true),
	}
}

func NewLogger(cfg *LoggerConfig) Logger {
	var logger Logger

	switch cfg.Logger {
	case "zap":
		logger = newZapLogger(cfg)
	case "zerolog":
		logger = newZeroLogger(cfg)
	default:
		panic("logger not supported: supported loggers: [zap, zerolog]")
	}

	logger.Init()
	return logger
}

// NewNopLogger discards everything. Used by tests and as a default when no
// logger is injected.
func NewNopLogger() Logger {
	return &zapLogger{
		cfg:    &LoggerConfig{Level: "fatal"},
		logger: zap.NewNop().Sugar(),
	}
}
