// Package logging builds the zap loggers used across revkit.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultFileName = "revkit.log"

// Options selects the sinks. With neither set the logger discards everything.
type Options struct {
	Debug   bool
	Console io.Writer // colored console output, usually os.Stderr
	File    string    // rotated log file
}

// NewEncoderConfig is zap's development layout with production keys and no
// stack traces.
func NewEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// DefaultFile is ~/.revkit/revkit.log.
func DefaultFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".revkit", DefaultFileName), nil
}

// New returns a sugared logger and a function that flushes and closes its sinks.
func New(opts Options) (*zap.SugaredLogger, func() error, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	var cores []zapcore.Core
	var closers []io.Closer

	if opts.Console != nil {
		enc := zapcore.NewConsoleEncoder(NewEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(opts.Console), level))
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			Compress:   true,
		}
		cfg := NewEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(rotator), level))
		closers = append(closers, rotator)
	}

	if len(cores) == 0 {
		return zap.NewNop().Sugar(), func() error { return nil }, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	closeFn := func() error {
		// Sync fails on terminals on some platforms; it is not worth reporting.
		_ = logger.Sync()
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c.Close())
		}
		return err
	}
	return logger, closeFn, nil
}
