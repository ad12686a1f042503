package diag

import (
	"fmt"
	"log"
	"os"
	"sync"

	"logpipe/internal/record"
)

// Logger is the pipeline's log of last resort. Delivery failures, breaker
// trips and worker lifecycle events go here, never back through the pipeline
// itself.
type Logger struct {
	prefix string
	logger *log.Logger

	mu    sync.Mutex
	level record.Level
}

// NewLogger creates a diagnostic logger writing to stderr with a given prefix.
func NewLogger(prefix string, level ...record.Level) *Logger {
	min := record.Warning
	if len(level) > 0 {
		min = level[0]
	}
	return &Logger{
		prefix: prefix,
		logger: log.New(os.Stderr, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		level:  min,
	}
}

// SetLevel changes the minimum level that gets written.
func (l *Logger) SetLevel(level record.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.write(record.Debug, msg, keyvals...)
}

// Info logs an informational message with optional key-value pairs.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.write(record.Info, msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.write(record.Warning, msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.write(record.Error, msg, keyvals...)
}

func (l *Logger) write(level record.Level, msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	formatted := fmt.Sprintf("[%s] %s", level, msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		formatted += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	l.logger.Println(formatted)
}
