package logger

import (
	"sync"
)

var (
	globalLogger *SystemLogger
	mu           sync.RWMutex
)

// DefaultConfig is the console-only configuration used before InitGlobalLogger.
func DefaultConfig() SystemLoggerConfig {
	return SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      LevelInfo,
		Service:       "gobaokim",
		Version:       "1.0.0",
		Environment:   "development",
	}
}

// InitGlobalLogger replaces the global system logger. sink may be nil.
func InitGlobalLogger(config SystemLoggerConfig, sink Sink) *SystemLogger {
	if config.Service == "" {
		config.Service = "gobaokim"
	}
	l := NewSystemLogger(sink, config)

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		globalLogger = NewSystemLogger(nil, DefaultConfig())
	}
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithOperation creates a context logger for an API operation
func WithOperation(operation string) *ContextLogger {
	return WithContext(LogContext{Operation: operation})
}
