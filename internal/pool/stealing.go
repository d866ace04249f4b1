package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var stealingID int64

// StealingPool gives each worker its own local job queue, falling back to
// round-robin stealing from peers when its own queue is empty, with a
// single shared channel behind both Submit and an idle worker's final
// wait so that overflow from a full local queue and a worker that has
// exhausted its steal pass both land in the same place. This is the
// Go-idiomatic analogue of a rayon-style work-stealing pool: unlike
// Rust, Go's runtime already multiplexes goroutines onto OS threads with
// its own work-stealing scheduler, so this pool's job is purely to bound
// the number of concurrently-running jobs to n, while still spreading
// bursty submissions across workers instead of piling them on one queue.
type StealingPool struct {
	id      string
	n       int
	locals  []chan Job
	shared  chan Job
	next    uint64
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewStealingPool spawns n workers, each with its own buffered local
// queue, sharing one unbuffered overflow channel. n must be positive.
func NewStealingPool(n int) (*StealingPool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool: worker count must be positive, got %d", n)
	}
	id := fmt.Sprintf("stealing-%d", atomic.AddInt64(&stealingID, 1))
	p := &StealingPool{
		id:      id,
		n:       n,
		locals:  make([]chan Job, n),
		shared:  make(chan Job),
		closing: make(chan struct{}),
	}
	for i := range p.locals {
		p.locals[i] = make(chan Job, 64)
	}
	workersGauge.WithLabelValues("stealing", id).Set(float64(n))
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	return p, nil
}

func (p *StealingPool) workerLoop(self int) {
	defer p.wg.Done()
	for {
		job, ok := p.next1(self)
		if !ok {
			return
		}
		runRecovered("stealing", p.id, job)
	}
}

// next1 returns the next job for worker self: first its own queue, then
// round-robin stealing from peers, then the shared overflow channel —
// which a worker also blocks on (alongside its own queue) once a full
// pass over every peer comes up empty, so it keeps re-polling for new
// work instead of waiting on a single queue that may never fill again.
func (p *StealingPool) next1(self int) (Job, bool) {
	select {
	case job := <-p.locals[self]:
		return job, true
	default:
	}
	for i := 1; i < p.n; i++ {
		victim := (self + i) % p.n
		select {
		case job := <-p.locals[victim]:
			return job, true
		default:
		}
	}
	select {
	case job := <-p.shared:
		return job, true
	default:
	}
	select {
	case job := <-p.locals[self]:
		return job, true
	case job := <-p.shared:
		return job, true
	case <-p.closing:
		return nil, false
	}
}

// Submit tries a non-blocking send to the next worker's local queue, in
// round-robin order, first; if that queue is full, it falls back to the shared
// overflow channel, which every idle worker also polls.
func (p *StealingPool) Submit(job Job) {
	jobsSubmitted.WithLabelValues("stealing", p.id).Inc()
	idx := int(atomic.AddUint64(&p.next, 1) % uint64(p.n))
	select {
	case p.locals[idx] <- job:
		return
	default:
	}
	select {
	case p.locals[idx] <- job:
	case p.shared <- job:
	case <-p.closing:
	}
}

// Close stops accepting new work and waits for workers to drain and exit.
func (p *StealingPool) Close() {
	select {
	case <-p.closing:
		return
	default:
		close(p.closing)
	}
	p.wg.Wait()
	workersGauge.WithLabelValues("stealing", p.id).Set(0)
}
