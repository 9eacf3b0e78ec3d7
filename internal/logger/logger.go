package logger

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu  sync.RWMutex
	log = hclog.New(&hclog.LoggerOptions{
		Name:  "tonearm",
		Level: hclog.Info,
	})
)

// Configure replaces the process logger. Level is one of trace, debug,
// info, warn, error; unknown values fall back to info.
func Configure(level string) {
	mu.Lock()
	defer mu.Unlock()
	log = hclog.New(&hclog.LoggerOptions{
		Name:  "tonearm",
		Level: hclog.LevelFromString(level),
	})
}

func get() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Info logs informational messages
func Info(msg string, args ...interface{}) {
	get().Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	get().Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	get().Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	get().Debug(msg, args...)
}
