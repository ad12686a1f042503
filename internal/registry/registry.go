// Package registry binds logger names to configured pipelines. Exactly one
// handle exists per name; the first configuration wins and later ones are
// silently discarded, so library code and application code can both request
// a logger without racing.
package registry

import (
	"fmt"
	"sync"

	"logpipe/internal/config"
	"logpipe/internal/diag"
	"logpipe/internal/dispatch"
)

// ConfigurationError is the only error class a producer ever sees from the
// pipeline: sink construction failed fatally (e.g. the log directory cannot
// be created). It is never downgraded to a partial sink set.
type ConfigurationError struct {
	Name string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuring logger %q: %v", e.Name, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Registry owns the name-to-handle mapping. The dispatcher is injected so
// tests run against a fresh one instead of shared global state.
type Registry struct {
	dispatcher *dispatch.Dispatcher
	log        *diag.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates an empty registry delivering async traffic to d.
func New(d *dispatch.Dispatcher, log *diag.Logger) *Registry {
	if log == nil {
		log = diag.NewLogger("logpipe")
	}
	return &Registry{
		dispatcher: d,
		log:        log,
		handles:    make(map[string]*Handle),
	}
}

// Configure returns the handle for name, building its sinks on first call.
// Idempotent: if the handle already owns sinks, the supplied settings are
// discarded and the existing handle is returned unchanged.
func (r *Registry) Configure(name string, settings *config.Settings) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[name]; ok {
		return h, nil
	}

	h := &Handle{
		name:       name,
		dispatcher: r.dispatcher,
		log:        r.log,
		settings:   settings.Clone(),
	}
	if err := h.build(); err != nil {
		return nil, &ConfigurationError{Name: name, Err: err}
	}
	r.handles[name] = h
	return h, nil
}

// Lookup returns the handle for name if one was configured.
func (r *Registry) Lookup(name string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[name]
	return h, ok
}

// CloseAll flushes and closes every handle's sinks, for process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.handles {
		h.close()
	}
}
