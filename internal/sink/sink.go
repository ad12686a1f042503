// Package sink contains the delivery targets for log records. Console and
// file sinks are synchronous and written on the producer goroutine; remote
// and Kafka sinks are asynchronous, guarded by a circuit breaker and only
// ever written from the dispatcher worker once registered.
package sink

import (
	"errors"

	"logpipe/internal/record"
)

var (
	// ErrSinkClosed is returned by writes after Close.
	ErrSinkClosed = errors.New("sink is closed")
)

// Sink is the uniform delivery contract. Synchronous sinks consume the
// rendered bytes; asynchronous sinks serialize the raw record themselves and
// ignore the rendered buffer.
type Sink interface {
	// Write delivers one record. Implementations must not mutate rec.
	Write(rendered []byte, rec *record.Record) error

	// Close flushes buffered state and releases resources. Writes after
	// Close return ErrSinkClosed.
	Close() error
}

// AsyncSink is a sink that goes through the dispatcher queue. Its breaker is
// mutated only by the dispatcher worker.
type AsyncSink interface {
	Sink

	// Name identifies the sink in operator warnings.
	Name() string

	// Breaker exposes the failure guard the dispatcher delivers through.
	Breaker() *Breaker
}
