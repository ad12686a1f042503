package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"logpipe/internal/diag"
	"logpipe/internal/record"
)

// remotePayload is the JSON body POSTed to the collector.
type remotePayload struct {
	Level     string  `json:"level"`
	Message   string  `json:"message"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
	File      string  `json:"file"`
	Line      int     `json:"line"`
	Func      string  `json:"func"`
	Exception string  `json:"exception,omitempty"`
}

// RemoteSink POSTs records to an HTTP collector. Always accessed from the
// dispatcher worker once registered; failures count against its breaker.
type RemoteSink struct {
	url        string
	headers    map[string]string
	instanceID string
	client     *http.Client
	breaker    *Breaker
	closed     bool
}

// NewRemote builds a remote sink. timeout and headers are fixed for the sink
// instance; maxFailures feeds the circuit breaker.
func NewRemote(url string, timeout time.Duration, maxFailures int, headers map[string]string, log *diag.Logger) *RemoteSink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RemoteSink{
		url:        url,
		headers:    headers,
		instanceID: uuid.New().String(),
		client:     &http.Client{Timeout: timeout},
		breaker:    NewBreaker("remote:"+url, maxFailures, log),
	}
}

func (s *RemoteSink) Name() string {
	return "remote"
}

func (s *RemoteSink) Breaker() *Breaker {
	return s.breaker
}

// Write sends one record. Any transport error or non-2xx response is a
// delivery failure.
func (s *RemoteSink) Write(_ []byte, rec *record.Record) error {
	if s.closed {
		return ErrSinkClosed
	}
	payload := remotePayload{
		Level:     rec.Level.String(),
		Message:   rec.Message,
		Service:   rec.LoggerName,
		Timestamp: rec.EpochSeconds(),
		File:      rec.File,
		Line:      rec.Line,
		Func:      rec.Function,
		Exception: rec.Exception,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Instance-ID", s.instanceID)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote collector returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (s *RemoteSink) Close() error {
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
