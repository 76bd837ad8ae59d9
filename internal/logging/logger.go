// Package logging builds the zap loggers used across the daemon.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level      string
	OutputPath string // "stdout" or a file path (rotated)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions returns stdout logging at info level.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		OutputPath: "stdout",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}

// New creates the root logger. File outputs rotate via lumberjack.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var writer zapcore.WriteSyncer
	var encoder zapcore.Encoder
	if opts.OutputPath == "" || opts.OutputPath == "stdout" {
		writer = zapcore.AddSync(os.Stdout)
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.OutputPath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, writer, level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// WithComponent names a child logger after its component.
func WithComponent(logger *zap.Logger, component string) *zap.Logger {
	return logger.Named(component)
}
