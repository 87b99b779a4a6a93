// Package logger provides the shared application logger.
package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu  sync.RWMutex
	log = hclog.New(&hclog.LoggerOptions{
		Name:   "reelkit",
		Level:  hclog.Info,
		Output: os.Stdout,
	})
)

// SetLevel changes the log level at runtime ("debug", "info", "warn", "error").
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(hclog.LevelFromString(level))
}

// Named returns a sub-logger for a long-running component.
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Named(name)
}

// Info logs informational messages
func Info(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info(fmt.Sprintf(format, args...))
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn(fmt.Sprintf(format, args...))
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error(fmt.Sprintf(format, args...))
}

// Debug logs debug messages
func Debug(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug(fmt.Sprintf(format, args...))
}
