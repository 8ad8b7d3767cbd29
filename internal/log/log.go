// Package log provides the process-wide leveled logger.
package log

import (
	"sync"

	"firestige.xyz/woolong/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

// DefaultConfig is used until Init is called.
var DefaultConfig = config.LogConfig{
	Level:   "info",
	Format:  "pattern",
	Pattern: "%time [%level] %msg %field\n",
	Time:    "2006-01-02 15:04:05.000",
}

var (
	mu     sync.RWMutex
	logger Logger
)

// GetLogger returns the global logger, building one from DefaultConfig on first use.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger, _ = newLogrusAdapter(DefaultConfig)
	}
	return logger
}

// Init replaces the global logger. It may be called again after a config reload.
func Init(cfg config.LogConfig) error {
	l, err := newLogrusAdapter(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
