package sink

import "logpipe/internal/diag"

// Breaker counts consecutive delivery failures for one async sink and
// permanently disables it once the threshold is crossed. There is no
// half-open probing: open is terminal for the sink instance.
//
// State is mutated only by the single dispatcher worker, so no lock is
// needed. Introducing multiple workers would require adding one.
type Breaker struct {
	sinkName    string
	maxFailures int
	failures    int
	disabled    bool
	log         *diag.Logger
}

// NewBreaker creates a closed breaker. maxFailures below one (including
// negative values from misconfigured env vars) is clamped so the sink still
// gets at least one attempt and the threshold stays finite.
func NewBreaker(sinkName string, maxFailures int, log *diag.Logger) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if log == nil {
		log = diag.NewLogger("breaker")
	}
	return &Breaker{
		sinkName:    sinkName,
		maxFailures: maxFailures,
		log:         log,
	}
}

// Do attempts one delivery. While open it skips the attempt and reports
// success, so a dead sink can never fail the dispatcher. A successful
// delivery resets the failure count; the threshold-crossing failure trips the
// breaker and emits a one-time operator warning.
func (b *Breaker) Do(deliver func() error) error {
	if b.disabled {
		return nil
	}
	if err := deliver(); err != nil {
		b.failures++
		if b.failures >= b.maxFailures {
			b.disabled = true
			b.log.Warn("circuit breaker opened, sink disabled for its lifetime",
				"sink", b.sinkName, "failures", b.failures)
		}
		return err
	}
	b.failures = 0
	return nil
}

// Open reports whether the breaker has tripped.
func (b *Breaker) Open() bool {
	return b.disabled
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	return b.failures
}
