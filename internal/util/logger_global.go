package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	globalLogger LoggerInterface
	loggerOnce   sync.Once
)

// DefaultLogPath returns ~/.go-claude-voice/logs/voice.log, or a path in
// the temp directory when the home directory is unknown.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "go-claude-voice", "voice.log")
	}
	return filepath.Join(home, ".go-claude-voice", "logs", "voice.log")
}

// InitLogger initializes the global logger once. When the log file cannot
// be opened, logging falls back to stderr.
func InitLogger(logLevel, logFile string, debugToConsole bool) {
	loggerOnce.Do(func() {
		logger, err := NewLogger(logLevel, logFile, debugToConsole)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, logging to stderr\n", err)
			logger, _ = NewLogger(logLevel, "", true)
		}
		globalLogger = logger
	})
}

// SetLogger replaces the global logger. Intended for tests.
func SetLogger(logger LoggerInterface) {
	globalLogger = logger
}

// CloseLogger flushes and closes the global logger outputs.
func CloseLogger() {
	if globalLogger != nil {
		globalLogger.Close()
	}
}

// WithFields returns a logger carrying fields, or nil before InitLogger.
func WithFields(fields ...Field) LoggerInterface {
	if globalLogger == nil {
		return nil
	}
	return globalLogger.With(fields...)
}

func LogInfo(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Info(msg, fields...)
	}
}

func LogInfof(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Infof(format, args...)
	}
}

func LogDebug(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Debug(msg, fields...)
	}
}

func LogDebugf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debugf(format, args...)
	}
}

func LogWarn(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Warn(msg, fields...)
	}
}

func LogWarnf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warnf(format, args...)
	}
}

func LogError(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Error(msg, fields...)
	}
}

func LogErrorf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Errorf(format, args...)
	}
}
