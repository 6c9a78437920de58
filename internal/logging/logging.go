// Package logging provides structured logging with zap.
package logging

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey struct{}

// loggers pairs the logger handed out for direct use with a copy that
// skips one frame for the package-level Debug/Info/Warn/Error wrappers.
type loggers struct {
	base    *zap.Logger
	wrapped *zap.Logger
}

func newLoggers(l *zap.Logger) *loggers {
	return &loggers{base: l, wrapped: l.WithOptions(zap.AddCallerSkip(1))}
}

var (
	global atomic.Pointer[loggers]
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Init builds the global logger. An unknown level falls back to info.
func Init(cfg Config) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}
	global.Store(newLoggers(logger))
	return nil
}

// Replace swaps the global logger and returns a func restoring the old one.
func Replace(logger *zap.Logger) func() {
	prev := global.Swap(newLoggers(logger))
	return func() { global.Store(prev) }
}

// Sync flushes any buffered log entries.
func Sync() error {
	if l := global.Load(); l != nil {
		return l.base.Sync()
	}
	return nil
}

// L returns the global logger, building a production one on first use.
func L() *zap.Logger {
	return current().base
}

func current() *loggers {
	if l := global.Load(); l != nil {
		return l
	}
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	l := newLoggers(base)
	if global.CompareAndSwap(nil, l) {
		return l
	}
	return global.Load()
}

// WithContext returns the request-scoped logger, or the global one.
func WithContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return l
	}
	return L()
}

// WithRequestID returns a context whose logger tags lines with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	l := WithContext(ctx).With(zap.String("request_id", id))
	return context.WithValue(ctx, contextKey{}, l)
}

func Debug(msg string, fields ...zap.Field) { current().wrapped.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { current().wrapped.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { current().wrapped.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { current().wrapped.Error(msg, fields...) }
