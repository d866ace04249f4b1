package engine

import (
	"time"

	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/sony/gobreaker"
)

// newWriterBreaker wraps the writer's append/compaction disk I/O so a run
// of failures (disk full, permission revoked mid-run) trips to fail-fast
// rather than blocking the single writer thread against a wedged
// filesystem. It is unreachable on the happy path: a single append
// failure alone never trips it.
func newWriterBreaker(name string, onTrip func()) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen && onTrip != nil {
				onTrip()
			}
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// guardedWrite runs write through the breaker, translating a tripped
// breaker into kvserr.Internal.
func guardedWrite(cb *gobreaker.CircuitBreaker, write func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, write()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return kvserr.Wrap(kvserr.Internal, "writer circuit breaker open", err)
	}
	if err != nil {
		return kvserr.Wrap(kvserr.Io, "log write failed", err)
	}
	return nil
}
