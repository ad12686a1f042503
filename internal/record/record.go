package record

import (
	"fmt"
	"strings"
	"time"
)

// Level represents an enumeration of log levels. The numeric spacing leaves
// room for intermediate levels without renumbering.
type Level int

const (
	Debug    Level = 10
	Info     Level = 20
	Warning  Level = 30
	Error    Level = 40
	Critical Level = 50
	NotSet   Level = 0
)

// String returns the canonical upper-case name of the level.
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARNING", "WARN":
		return Warning, nil
	case "ERROR":
		return Error, nil
	case "CRITICAL", "FATAL":
		return Critical, nil
	}
	return NotSet, fmt.Errorf("unknown log level %q", name)
}

// Record is an immutable snapshot of one log event. It is created once per
// emit call and then only read; sinks must never mutate it.
type Record struct {
	Level      Level
	Message    string
	LoggerName string
	Time       time.Time
	File       string
	Line       int
	Function   string
	Exception  string
	Extra      map[string]any
}

// New builds a record stamped with the current wall-clock time.
func New(name string, level Level, msg string) *Record {
	return &Record{
		Level:      level,
		Message:    msg,
		LoggerName: name,
		Time:       time.Now(),
	}
}

// EpochSeconds returns the record time as fractional seconds since the epoch,
// the representation used by the remote collector payload.
func (r *Record) EpochSeconds() float64 {
	return float64(r.Time.UnixNano()) / 1e9
}
