package trampoline

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerMu   sync.RWMutex
	loggerOnce sync.Once
)

// Logger returns the package logger. It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		if logger == nil {
			logger = zap.NewNop()
		}
		loggerMu.Unlock()
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the package logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Logger()
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}
