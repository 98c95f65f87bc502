// Package logging configures the application-wide structured loggers.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tkoskela/patternmind-go/internal/conf"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

// globalLevel drives both global handlers so verbosity can change at runtime.
var globalLevel = new(slog.LevelVar)

var (
	fileMu      sync.Mutex
	fileLogConf conf.LogConfig
	fileClosers []func() error
)

// EnableFileLogging routes ForService loggers to per-service rotating files
// in the directory of the configured main log path. A disabled config turns
// file logging back off for subsequently created loggers.
func EnableFileLogging(cfg conf.LogConfig) {
	fileMu.Lock()
	defer fileMu.Unlock()
	fileLogConf = cfg
}

// CloseFileLoggers closes every rotating writer opened through ForService.
func CloseFileLoggers() {
	fileMu.Lock()
	defer fileMu.Unlock()
	for _, closeFn := range fileClosers {
		if err := closeFn(); err != nil {
			slog.Error("error closing file logger", "error", err)
		}
	}
	fileClosers = nil
}

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// It configures JSON output for structured logs and Text output for human-readable logs.
func Init() {
	globalLevel.Set(slog.LevelInfo)

	structuredHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       globalLevel,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       globalLevel,
		ReplaceAttr: replaceLevelNames,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// SetLevel changes the verbosity of the global loggers at runtime.
func SetLevel(level slog.Level) {
	globalLevel.Set(level)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// When file logging is enabled the logger writes to a per-service rotating
// file next to the main log; otherwise it derives from the global structured
// logger (or the slog default before Init).
func ForService(serviceName string) *slog.Logger {
	fileMu.Lock()
	cfg := fileLogConf
	fileMu.Unlock()

	if cfg.Enabled && cfg.Path != "" {
		path := filepath.Join(filepath.Dir(cfg.Path), serviceName+".log")
		logger, closeFn, err := NewFileLogger(path, serviceName, globalLevel)
		if err == nil {
			fileMu.Lock()
			fileClosers = append(fileClosers, closeFn)
			fileMu.Unlock()
			return logger
		}
		Error("failed to initialize service file logger, falling back to stdout",
			"service", serviceName, "error", err)
	}

	base := structuredLogger
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", serviceName)
}

// --- Convenience functions using the default logger ---

// Debug logs a debug message using the default slog logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message using the default slog logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message using the default slog logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message using the default slog logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs a trace message using the custom Trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// NewFileLogger creates a new slog.Logger instance configured to write JSON
// logs to the specified file path using lumberjack for rotation. It includes a
// 'service' attribute in all logs. It returns the logger, a function to close
// the underlying log writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename: filePath,
		Compress: false,
	}

	// Defaults, overridden by the main log rotation settings below.
	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28 // days

	fileMu.Lock()
	cfg := fileLogConf
	fileMu.Unlock()

	if mb := int(cfg.MaxSize / (1024 * 1024)); mb > 0 {
		maxSizeMB = mb
	}
	switch cfg.Rotation {
	case conf.RotationDaily:
		maxAge = 1
		maxBackups = 30
	case conf.RotationWeekly:
		maxAge = 7
		maxBackups = 4
	case conf.RotationSize:
		// size-based rotation uses maxSizeMB as-is
	}

	logWriter.MaxSize = maxSizeMB
	logWriter.MaxBackups = maxBackups
	logWriter.MaxAge = maxAge

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(fileHandler).With("service", serviceName)

	closeFunc := func() error {
		return logWriter.Close()
	}

	return logger, closeFunc, nil
}
