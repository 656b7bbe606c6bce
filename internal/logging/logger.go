// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logger flavour and optional file output.
type Options struct {
	Development bool
	// Level overrides the default level (debug in development, info otherwise).
	Level string
	// File, when set, receives a JSON copy of every entry with size-based rotation.
	File      string
	MaxSizeMB int
}

// New builds a zap.Logger configured for development or production. The
// returned close function flushes and releases the log file, if any.
func New(opts Options) (*zap.Logger, func() error, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	if opts.File == "" {
		return logger, func() error { return nil }, nil
	}

	rotator := newRotator(opts.File, opts.MaxSizeMB)
	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.TimeKey = "ts"
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(rotator), cfg.Level)

	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
	closeFn := func() error {
		_ = logger.Sync()
		if err := rotator.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		return nil
	}
	return logger, closeFn, nil
}

func newRotator(path string, maxSizeMB int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return &lumberjack.Logger{
		Filename:  path,
		MaxSize:   maxSizeMB,
		LocalTime: true,
		Compress:  true,
	}
}
