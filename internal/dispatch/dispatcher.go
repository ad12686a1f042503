// Package dispatch owns the shared bounded queue and the single background
// worker that drains it to the asynchronous sinks.
package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"logpipe/internal/diag"
	"logpipe/internal/record"
	"logpipe/internal/sink"
)

var (
	// ErrNotStarted is returned by Enqueue before Start.
	ErrNotStarted = errors.New("dispatcher is not started")

	// ErrStopped is returned by Enqueue after Shutdown.
	ErrStopped = errors.New("dispatcher is stopped")
)

// Task pairs one record with the async sinks it must reach, snapshotted in
// registration order at emit time. Snapshotting keeps a racing reload from
// ever exposing a half-torn sink set to the worker.
type Task struct {
	Record *record.Record
	Sinks  []sink.AsyncSink
}

// Dispatcher is the process-wide delivery engine: one bounded queue, exactly
// one worker goroutine. Producers block on Enqueue when the queue is full
// (backpressure); dropping logs silently was rejected as the worse failure
// mode.
type Dispatcher struct {
	tasks   chan Task
	pending atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool

	done    chan struct{}
	exited  chan struct{}
	log     *diag.Logger
}

// New creates a dispatcher with the given queue capacity. The capacity
// should be large enough to absorb bursts; config defaults to 10^6.
func New(capacity int, log *diag.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = 1_000_000
	}
	if log == nil {
		log = diag.NewLogger("dispatch")
	}
	return &Dispatcher{
		tasks:  make(chan Task, capacity),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		log:    log,
	}
}

// Start launches the worker. Calling Start more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	go d.run()
}

// Enqueue hands one task to the worker, blocking while the queue is full.
func (d *Dispatcher) Enqueue(t Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started {
		return ErrNotStarted
	}
	if d.stopped {
		return ErrStopped
	}
	d.pending.Add(1)
	d.tasks <- t
	return nil
}

// Flush blocks the calling goroutine until every accepted task has been
// delivered or the timeout elapses; the worker keeps running either way.
// A non-positive timeout waits indefinitely.
func (d *Dispatcher) Flush(timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for d.pending.Load() > 0 {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

// Shutdown drains the queue completely, then stops and joins the worker.
// Safe to call any number of times.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		if d.started {
			<-d.exited
		}
		return
	}
	d.stopped = true
	wasStarted := d.started
	d.mu.Unlock()

	if !wasStarted {
		return
	}
	close(d.done)
	<-d.exited
}

// Pending returns the number of accepted but not yet delivered tasks.
func (d *Dispatcher) Pending() int64 {
	return d.pending.Load()
}

// Capacity returns the queue's slot count.
func (d *Dispatcher) Capacity() int {
	return cap(d.tasks)
}

func (d *Dispatcher) run() {
	defer close(d.exited)
	for {
		select {
		case t := <-d.tasks:
			d.deliver(t)
		case <-d.done:
			// Drain everything that was accepted before stopping; a log
			// pipeline only drops messages on process kill, not on
			// graceful shutdown.
			for {
				select {
				case t := <-d.tasks:
					d.deliver(t)
				default:
					return
				}
			}
		}
	}
}

// deliver pushes one record through every sink's breaker in registration
// order. A slow sink delays the sinks behind it; delivery stays serialized
// to preserve per-sink FIFO ordering.
func (d *Dispatcher) deliver(t Task) {
	for _, s := range t.Sinks {
		s := s
		if err := s.Breaker().Do(func() error {
			return s.Write(nil, t.Record)
		}); err != nil {
			d.log.Debug("async delivery failed", "sink", s.Name(), "error", err)
		}
	}
	d.pending.Add(-1)
}
