// SPDX-License-Identifier: MIT
package log

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false // Default to Info on parse error
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// --- Global Logger State ---

// level is shared by every core built by Configure, so SetLevel applies to
// loggers handed out before the change.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var current atomic.Uint32

var logger atomic.Pointer[zap.Logger]

func init() {
	// Default level at startup. Can be overridden by config.
	SetLevel(LevelInfo)
	Configure(false, zapcore.Lock(os.Stderr))
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// Configure replaces the global logger. With json set the output is one JSON
// object per line, otherwise the console encoder is used.
func Configure(json bool, w zapcore.WriteSyncer) {
	enc := zapcore.NewConsoleEncoder(encoderConfig())
	if json {
		cfg := encoderConfig()
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(t.UTC().Format(time.RFC3339Nano))
		}
		enc = zapcore.NewJSONEncoder(cfg)
	}
	core := zapcore.NewCore(enc, w, level)
	logger.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// L returns the global logger for structured logging. The caller skip of
// the package helpers is removed.
func L() *zap.Logger {
	return logger.Load().WithOptions(zap.AddCallerSkip(-1))
}

// Sync flushes buffered entries.
func Sync() error {
	return logger.Load().Sync()
}

// SetLevel sets the global logging level atomically.
func SetLevel(l LogLevel) {
	current.Store(uint32(l))
	level.SetLevel(l.zapLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(current.Load())
}

func sugar() *zap.SugaredLogger {
	return logger.Load().Sugar()
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...interface{}) {
	sugar().Fatalf(format, v...)
}

// --- Functions without formatting (convenience) ---

// Debug logs a debug message if the level is appropriate.
func Debug(v ...interface{}) {
	sugar().Debug(v...)
}

// Info logs an info message if the level is appropriate.
func Info(v ...interface{}) {
	sugar().Info(v...)
}

// Warn logs a warning message if the level is appropriate.
func Warn(v ...interface{}) {
	sugar().Warn(v...)
}

// Error logs an error message if the level is appropriate.
func Error(v ...interface{}) {
	sugar().Error(v...)
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...interface{}) {
	sugar().Fatal(v...)
}
