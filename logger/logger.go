// Package logger wraps zap for structured logging.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log      *zap.Logger
	once     sync.Once
	logFile  = "vetsynth.log" // Default log file
	logLevel = zapcore.InfoLevel
)

// SetLogPath changes the JSON log file. It only takes effect before the
// logger is initialized.
func SetLogPath(path string) {
	logFile = path
}

// SetLevel sets the minimum level from its textual form ("debug", "info",
// "warn", "error"). Unknown values keep the current level.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err == nil {
		logLevel = l
	}
}

// InitLogger initializes the Zap logger with structured logging.
func InitLogger() {
	once.Do(func() {
		level := zap.NewAtomicLevelAt(logLevel)

		cores := []zapcore.Core{
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.Lock(os.Stdout),
				level,
			),
		}

		// File logging is best effort: an unwritable path leaves console only.
		if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666); err == nil {
			fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
			cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(file), level))
		}

		log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	})
}

// GetLogger provides access to the initialized logger.
func GetLogger() *zap.Logger {
	if log == nil {
		InitLogger()
	}
	return log
}

// Sync ensures buffered logs are written before the application exits.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// ResetLogger drops the current logger so the next call re-initializes it.
// Intended for tests.
func ResetLogger() {
	Sync()
	log = nil
	once = sync.Once{}
}
