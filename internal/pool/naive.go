package pool

import (
	"fmt"
	"sync/atomic"
)

var naiveID int64

// NaivePool spawns a fresh goroutine for every job. Its worker-count
// field is informational only: nothing in this pool ever caps how many
// goroutines run concurrently.
type NaivePool struct {
	id      string
	workers int
}

// NewNaivePool returns a pool that reports n as its informational worker
// count. n must be positive.
func NewNaivePool(n int) (*NaivePool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool: worker count must be positive, got %d", n)
	}
	id := fmt.Sprintf("naive-%d", atomic.AddInt64(&naiveID, 1))
	workersGauge.WithLabelValues("naive", id).Set(float64(n))
	return &NaivePool{id: id, workers: n}, nil
}

// Submit runs job on a brand-new goroutine.
func (p *NaivePool) Submit(job Job) {
	jobsSubmitted.WithLabelValues("naive", p.id).Inc()
	go runRecovered("naive", p.id, job)
}

// Close only resets this pool's worker gauge: the naive pool holds no
// shared state to release.
func (p *NaivePool) Close() {
	workersGauge.WithLabelValues("naive", p.id).Set(0)
}
