// Package logger wraps a process-wide zap logger. Packages log through the
// helpers here so tests and CLIs can swap the sink in one place.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Config controls how Init builds the logger.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Development switches to the human-readable console encoder.
	Development bool

	// OutputPaths overrides the zap sinks (default stderr). The terminal
	// client points this at a file so log lines do not corrupt the UI.
	OutputPaths []string
}

// Init builds a zap logger from cfg and installs it globally.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
		zc.ErrorOutputPaths = cfg.OutputPaths
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	Set(l)
	return nil
}

// Set replaces the global logger. A nil logger installs a no-op one.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
