// Package logger builds the zap loggers used by the API, the worker and the
// CLI, and sanitizes request-derived values before they are logged.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats accepted by New
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New creates a logger tagged with service. The JSON format is the default;
// console is meant for local runs.
func New(service string, debugMode bool, format string) (*zap.Logger, error) {
	var config zap.Config
	if format == FormatConsole {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Encoding = FormatJSON
		config.EncoderConfig = zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
		// Sampling would drop repeated auth failures the audit log relies on
		config.Sampling = nil
	}

	config.Level = zap.NewAtomicLevelAt(levelFor(debugMode))
	if service != "" {
		config.InitialFields = map[string]any{"service": service}
	}

	return config.Build()
}

func levelFor(debugMode bool) zapcore.Level {
	if debugMode {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Sync flushes buffered entries; safe on a nil logger
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
