package util

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     atomic.Pointer[zap.Logger]
	loggerOnce sync.Once
)

type loggerKey struct{}

// InitLogger initializes the global logger
func InitLogger(env string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := config.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return err
	}

	logger.Store(l)
	zap.ReplaceGlobals(l)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			l = zap.NewNop()
		}
		logger.CompareAndSwap(nil, l)
	})
	return logger.Load()
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if l := logger.Load(); l != nil {
		_ = l.Sync()
	}
}

// WithLogger stores a request scoped logger in ctx
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the request scoped logger, falling back to fallback
// and then to the global logger.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return GetLogger()
}
