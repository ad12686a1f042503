// Package logpipe is an asynchronous, failure-tolerant log-delivery
// pipeline. Application goroutines write to synchronous console and file
// sinks inline and hand records for remote HTTP and Kafka delivery to a
// single background dispatcher, so a slow or dead collector can never crash
// or stall business logic beyond bounded queue backpressure. Each async sink
// is guarded by a circuit breaker that permanently disables it after
// repeated failures.
//
// Typical usage:
//
//	pipe := logpipe.NewPipeline(0)
//	defer pipe.Shutdown()
//
//	log, err := pipe.Get("auth", &logpipe.Overrides{Mode: logpipe.String("prod")})
//	if err != nil { ... }
//	log.Info("user logged in", "user_id", 42)
package logpipe

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"logpipe/internal/config"
	"logpipe/internal/diag"
	"logpipe/internal/dispatch"
	"logpipe/internal/mask"
	"logpipe/internal/record"
	"logpipe/internal/registry"
)

// Overrides carries explicitly provided settings; nil fields fall back to
// the environment and file layers. See the config package for the full
// field list.
type Overrides = config.Overrides

// LogLevel is the ordered severity enum.
type LogLevel = record.Level

// Severity constants, re-exported for override construction.
const (
	LevelDebug    = record.Debug
	LevelInfo     = record.Info
	LevelWarning  = record.Warning
	LevelError    = record.Error
	LevelCritical = record.Critical
)

// Pipeline bundles the shared dispatcher and the logger registry. Tests and
// embedding applications create their own; there is no hidden module-level
// queue.
type Pipeline struct {
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	log        *diag.Logger
}

// NewPipeline creates and starts a pipeline. queueCapacity <= 0 resolves the
// capacity from the environment (LOG_QUEUE_CAPACITY, default 10^6 entries);
// an explicit positive value wins over the environment.
func NewPipeline(queueCapacity int) *Pipeline {
	log := diag.NewLogger("logpipe")
	if queueCapacity <= 0 {
		if settings, err := config.Load(""); err == nil {
			queueCapacity = settings.QueueCapacity
		}
	}
	d := dispatch.New(queueCapacity, log)
	d.Start()
	return &Pipeline{
		dispatcher: d,
		registry:   registry.New(d, log),
		log:        log,
	}
}

// Get returns the logger for name, configuring it on first call from the
// environment plus the given overrides. Later calls for the same name return
// the existing logger and silently discard the supplied overrides: first
// caller wins.
func (p *Pipeline) Get(name string, overrides *config.Overrides) (*Logger, error) {
	return p.Configure(name, "", overrides)
}

// Configure is Get with an explicit YAML config file layered under the
// environment and overrides.
func (p *Pipeline) Configure(name, configFile string, overrides *config.Overrides) (*Logger, error) {
	settings, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	overrides.Apply(settings)

	handle, err := p.registry.Configure(name, settings)
	if err != nil {
		return nil, err
	}
	return &Logger{pipeline: p, handle: handle}, nil
}

// Flush waits until every queued async record has been delivered or the
// timeout elapses. Non-positive timeout waits indefinitely. Returns whether
// the queue drained.
func (p *Pipeline) Flush(timeout time.Duration) bool {
	return p.dispatcher.Flush(timeout)
}

// Shutdown drains the queue, stops the dispatcher worker and closes every
// sink. Idempotent. Go has no atexit hook, so call this (or defer it) from
// main before the process exits.
func (p *Pipeline) Shutdown() {
	p.dispatcher.Shutdown()
	p.registry.CloseAll()
}

// Logger is the producer-facing handle for one logger name.
type Logger struct {
	pipeline *Pipeline
	handle   *registry.Handle
	bound    map[string]any
}

// Name returns the logger name.
func (l *Logger) Name() string {
	return l.handle.Name()
}

// With returns a logger that stamps the given key-value pairs onto every
// record it emits, for request-scoped context like request IDs.
func (l *Logger) With(keyvals ...any) *Logger {
	bound := make(map[string]any, len(l.bound)+len(keyvals)/2)
	for k, v := range l.bound {
		bound[k] = v
	}
	mergePairs(bound, keyvals)
	return &Logger{pipeline: l.pipeline, handle: l.handle, bound: bound}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.emit(record.Debug, msg, "", keyvals)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.emit(record.Info, msg, "", keyvals)
}

// Warning logs at WARNING level.
func (l *Logger) Warning(msg string, keyvals ...any) {
	l.emit(record.Warning, msg, "", keyvals)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.emit(record.Error, msg, "", keyvals)
}

// Critical logs at CRITICAL level.
func (l *Logger) Critical(msg string, keyvals ...any) {
	l.emit(record.Critical, msg, "", keyvals)
}

// Exception logs at ERROR level with the error rendered into the record's
// exception field, which async sinks carry as a dedicated payload field.
func (l *Logger) Exception(msg string, err error, keyvals ...any) {
	exc := ""
	if err != nil {
		exc = err.Error()
	}
	l.emit(record.Error, msg, exc, keyvals)
}

// Reload rebuilds the logger's sinks from its stored settings, flushing and
// closing the current set first. Safe to call concurrently with emits.
func (l *Logger) Reload() error {
	return l.handle.Reload()
}

// Flush drains the shared async queue; see Pipeline.Flush.
func (l *Logger) Flush(timeout time.Duration) bool {
	return l.pipeline.Flush(timeout)
}

func (l *Logger) emit(level record.Level, msg, exception string, keyvals []any) {
	if level < l.handle.Level() {
		return
	}
	if l.handle.MaskEnabled() {
		msg = mask.Scrub(msg)
	}

	rec := record.New(l.handle.Name(), level, msg)
	rec.Exception = exception
	if pc, file, line, ok := runtime.Caller(2); ok {
		rec.File = file
		rec.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if i := strings.LastIndexByte(name, '/'); i >= 0 {
				name = name[i+1:]
			}
			rec.Function = name
		}
	}
	if len(l.bound) > 0 || len(keyvals) > 0 {
		extra := make(map[string]any, len(l.bound)+len(keyvals)/2)
		for k, v := range l.bound {
			extra[k] = v
		}
		mergePairs(extra, keyvals)
		rec.Extra = extra
	}

	l.handle.Emit(rec)
}

func mergePairs(dst map[string]any, keyvals []any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		dst[key] = keyvals[i+1]
	}
}

// String returns a pointer to s, a convenience for filling Overrides.
func String(s string) *string { return &s }

// Bool returns a pointer to b, a convenience for filling Overrides.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, a convenience for filling Overrides.
func Int(i int) *int { return &i }

// Level returns a pointer to l, a convenience for filling Overrides.
func Level(l LogLevel) *LogLevel { return &l }
