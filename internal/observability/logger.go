package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kenelite/go-accel/internal/config"
)

type Logger struct {
	*zap.SugaredLogger
}

// NewLogger builds a zap logger from the observability section. Format is
// "json" (default) or "console".
func NewLogger(cfg config.ObservabilityConfig) (*Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{l.Sugar()}, nil
}

// NewNopLogger discards everything; used in tests.
func NewNopLogger() *Logger { return &Logger{zap.NewNop().Sugar()} }

func (l *Logger) Sync() error { return l.SugaredLogger.Sync() }
