// Package logging builds the process-wide zap logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ParseLevel maps a textual level to a zap level. Unknown values map to Info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// EncoderConfig returns the encoder settings shared by both formats
func EncoderConfig(format string) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

// New builds a logger writing to stdout. Anything but "json" gets the console encoder.
func New(level, format string) *zap.Logger {
	return NewWithSink(level, format, zapcore.Lock(os.Stdout))
}

// NewWithSink is New with an explicit destination
func NewWithSink(level, format string, sink zapcore.WriteSyncer) *zap.Logger {
	format = strings.ToLower(strings.TrimSpace(format))

	var encoder zapcore.Encoder
	if format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(EncoderConfig(FormatJSON))
	} else {
		encoder = zapcore.NewConsoleEncoder(EncoderConfig(FormatConsole))
	}

	core := zapcore.NewCore(encoder, sink, ParseLevel(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Install builds the logger and makes it the zap global, returning a restore func
func Install(level, format string) (*zap.Logger, func()) {
	log := New(level, format)
	restore := zap.ReplaceGlobals(log)
	return log, func() {
		_ = log.Sync()
		restore()
	}
}
