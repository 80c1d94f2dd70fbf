package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface handed to every component. It mirrors the sugared zap API and
// adds named subloggers that share the parent's level.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<name>.<subname>" sharing this logger's level.
	Sublogger(subname string) Logger
	// With returns a logger that attaches the key/value pairs to every entry.
	With(keysAndValues ...interface{}) Logger
	SetLevel(level Level)
	GetLevel() Level
	Desugar() *zap.Logger
	Sync() error
}

type impl struct {
	name    string
	level   zap.AtomicLevel
	sugared *zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		name:    newName,
		level:   imp.level,
		sugared: imp.sugared.Named(subname),
	}
}

func (imp *impl) With(keysAndValues ...interface{}) Logger {
	return &impl{
		name:    imp.name,
		level:   imp.level,
		sugared: imp.sugared.With(keysAndValues...),
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return levelFromZap(imp.level.Level())
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.sugared.Desugar()
}

func (imp *impl) Sync() error {
	return imp.sugared.Sync()
}

func (imp *impl) enabled(level zapcore.Level) bool {
	return imp.level.Enabled(level)
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(zapcore.DebugLevel) {
		imp.sugared.Debug(args...)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(zapcore.DebugLevel) {
		imp.sugared.Debugf(template, args...)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(zapcore.DebugLevel) {
		imp.sugared.Debugw(msg, keysAndValues...)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(zapcore.InfoLevel) {
		imp.sugared.Info(args...)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(zapcore.InfoLevel) {
		imp.sugared.Infof(template, args...)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(zapcore.InfoLevel) {
		imp.sugared.Infow(msg, keysAndValues...)
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(zapcore.WarnLevel) {
		imp.sugared.Warn(args...)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(zapcore.WarnLevel) {
		imp.sugared.Warnf(template, args...)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(zapcore.WarnLevel) {
		imp.sugared.Warnw(msg, keysAndValues...)
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(zapcore.ErrorLevel) {
		imp.sugared.Error(args...)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(zapcore.ErrorLevel) {
		imp.sugared.Errorf(template, args...)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(zapcore.ErrorLevel) {
		imp.sugared.Errorw(msg, keysAndValues...)
	}
}
