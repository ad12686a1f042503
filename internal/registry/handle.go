package registry

import (
	"path/filepath"
	"sync"
	"time"

	"logpipe/internal/config"
	"logpipe/internal/diag"
	"logpipe/internal/dispatch"
	"logpipe/internal/record"
	"logpipe/internal/render"
	"logpipe/internal/sink"
)

// boundSink pairs a synchronous sink with its resolved renderer. Render mode
// is per sink: the console may use color, every other sink renders plain.
type boundSink struct {
	sink     sink.Sink
	renderer render.Renderer
}

// Handle binds a logger name to one configured pipeline: its synchronous
// sinks, its async sink registrations and its effective level. The RWMutex
// makes reload atomic against concurrent emits: an emit sees the old sink
// set or the new one, never a partially torn-down mix.
type Handle struct {
	name       string
	dispatcher *dispatch.Dispatcher
	log        *diag.Logger

	mu         sync.RWMutex
	settings   *config.Settings
	level      record.Level
	mask       bool
	syncSinks  []boundSink
	asyncSinks []sink.AsyncSink
}

// Name returns the logger name the handle is bound to.
func (h *Handle) Name() string {
	return h.name
}

// Level returns the effective level, used for early drop on the emit path.
func (h *Handle) Level() record.Level {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.level
}

// MaskEnabled reports whether sensitive-field scrubbing applies.
func (h *Handle) MaskEnabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mask
}

// Settings returns the handle's configuration snapshot.
func (h *Handle) Settings() *config.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings.Clone()
}

// build constructs the sink set from the settings snapshot. Console and file
// sinks always exist; remote and Kafka sinks only when configured. Called
// with h.mu held (or before the handle is published).
func (h *Handle) build() error {
	s := h.settings

	fileSink, err := sink.NewFile(
		filepath.Join(s.Dir, s.File), s.MaxBytes, s.BackupCount, s.CompressBackups)
	if err != nil {
		return err
	}

	var asyncSinks []sink.AsyncSink
	if s.RemoteURL != "" {
		asyncSinks = append(asyncSinks, sink.NewRemote(
			s.RemoteURL, s.RemoteTimeout, s.RemoteMaxFailures, s.RemoteHeaders, h.log))
	}
	if len(s.KafkaServers) > 0 {
		kafkaSink, err := sink.NewKafka(sink.KafkaConfig{
			Servers:             s.KafkaServers,
			Topic:               s.KafkaTopic,
			SchemaRegistryURL:   s.SchemaRegistryURL,
			SchemaCompatibility: s.SchemaCompatibility,
			MaxFailures:         s.KafkaMaxFailures,
		}, h.log)
		if err != nil {
			// Close everything built so far; a failed build leaves no sinks
			// behind.
			fileSink.Close()
			for _, a := range asyncSinks {
				a.Close()
			}
			return err
		}
		asyncSinks = append(asyncSinks, kafkaSink)
	}

	h.level = s.Level
	h.mask = s.Mask
	h.syncSinks = []boundSink{
		{sink: sink.NewConsole(nil), renderer: render.New(s.JSONMode, s.Color)},
		{sink: fileSink, renderer: render.New(s.JSONMode, false)},
	}
	h.asyncSinks = asyncSinks
	return nil
}

// Emit delivers one record: synchronous sinks are written on the calling
// goroutine; if any async sink exists, the record is enqueued once with a
// snapshot of the async sink set. The snapshot is taken under the read lock;
// the blocking enqueue happens outside it so backpressure cannot stall a
// concurrent reload forever.
func (h *Handle) Emit(rec *record.Record) {
	h.mu.RLock()
	if rec.Level < h.level {
		h.mu.RUnlock()
		return
	}
	for _, b := range h.syncSinks {
		if err := b.sink.Write(b.renderer.Render(rec), rec); err != nil {
			h.log.Warn("sync sink write failed", "logger", h.name, "error", err)
		}
	}
	async := h.asyncSinks
	h.mu.RUnlock()

	if len(async) == 0 {
		return
	}
	if err := h.dispatcher.Enqueue(dispatch.Task{Record: rec, Sinks: async}); err != nil {
		h.log.Warn("enqueue failed, async delivery skipped", "logger", h.name, "error", err)
	}
}

// Reload tears down and rebuilds the sink set from the stored settings under
// the exclusive lock. In-flight async tasks that still reference the old
// sinks are drained first, so closing them is safe.
func (h *Handle) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dispatcher.Flush(5 * time.Second)
	h.closeLocked()

	if err := h.build(); err != nil {
		return &ConfigurationError{Name: h.name, Err: err}
	}
	return nil
}

func (h *Handle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *Handle) closeLocked() {
	for _, b := range h.syncSinks {
		if err := b.sink.Close(); err != nil {
			h.log.Warn("closing sink failed", "logger", h.name, "error", err)
		}
	}
	for _, s := range h.asyncSinks {
		if err := s.Close(); err != nil {
			h.log.Warn("closing async sink failed", "logger", h.name, "sink", s.Name(), "error", err)
		}
	}
	h.syncSinks = nil
	h.asyncSinks = nil
}
