// Package logging contains the structured logging used by every subsystem and action.
package logging

import (
	"io"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// encoderConfig is a console layout with colored levels and millisecond durations, which keeps
// tick-rate logs readable.
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// NewLogger returns a logger writing Info+ entries to stderr.
func NewLogger(name string) Logger {
	return NewWriterLogger(name, INFO, os.Stderr)
}

// NewDebugLogger returns a logger writing Debug+ entries to stderr.
func NewDebugLogger(name string) Logger {
	return NewWriterLogger(name, DEBUG, os.Stderr)
}

// NewWriterLogger returns a logger writing entries at or above level to w.
func NewWriterLogger(name string, level Level, w io.Writer) Logger {
	atomicLevel := zap.NewAtomicLevelAt(level.AsZap())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(w), atomicLevel)
	return &impl{
		name:    name,
		level:   atomicLevel,
		sugared: zap.New(core, zap.AddCaller()).Sugar().Named(name),
	}
}

// NewTestLogger returns a Debug+ logger that writes through tb.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also records every entry so tests can assert on
// structured events.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	observerCore, observedLogs := observer.New(atomicLevel)
	base := zaptest.NewLogger(tb, zaptest.Level(atomicLevel), zaptest.WrapOptions(
		zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, observerCore)
		}),
	))
	return &impl{level: atomicLevel, sugared: base.Sugar()}, observedLogs
}
