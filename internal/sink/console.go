package sink

import (
	"io"
	"os"
	"sync"

	"logpipe/internal/record"
)

// ConsoleSink writes rendered bytes to a stream, stderr by default.
type ConsoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	closed bool
}

// NewConsole creates a console sink. A nil writer means stderr.
func NewConsole(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) Write(rendered []byte, _ *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	_, err := s.out.Write(rendered)
	return err
}

// Close marks the sink closed. The underlying stream is not owned by the
// sink and stays open.
func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
