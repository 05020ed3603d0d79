// Package logger keeps the application's printf-style leveled logging API on
// top of a zerolog backend, so call sites stay terse while output is
// structured and level-filtered in one place.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(zerolog.InfoLevel)
)

func newLogger(level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel reconfigures the global log level.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(ParseLevel(level))
}

// Level reports the current global log level name.
func Level() string {
	mu.RLock()
	defer mu.RUnlock()
	return strings.ToUpper(log.GetLevel().String())
}

func get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs a debug-level message.
func Debug(format string, v ...any) {
	l := get()
	l.Debug().Msgf(format, v...)
}

// Info logs an info-level message.
func Info(format string, v ...any) {
	l := get()
	l.Info().Msgf(format, v...)
}

// Warn logs a warning-level message.
func Warn(format string, v ...any) {
	l := get()
	l.Warn().Msgf(format, v...)
}

// Error logs an error-level message.
func Error(format string, v ...any) {
	l := get()
	l.Error().Msgf(format, v...)
}
