package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var sharedQueueID int64

// SharedQueuePool runs jobs on a fixed-size worker population pulling
// from one shared, unbuffered channel: nothing is queued, and Submit waits
// until a worker is free to take the job. If a job panics, the worker
// recovers, respawns its own replacement attached to the same channel,
// and exits — so the pool always has n workers competing on the queue,
// modulo the brief window between a panic and its replacement starting.
type SharedQueuePool struct {
	id       string
	n        int
	jobs     chan Job
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   int32
}

// NewSharedQueuePool spawns n workers draining a shared job channel. n
// must be positive.
func NewSharedQueuePool(n int) (*SharedQueuePool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool: worker count must be positive, got %d", n)
	}
	id := fmt.Sprintf("shared-queue-%d", atomic.AddInt64(&sharedQueueID, 1))
	p := &SharedQueuePool{
		id:       id,
		n:        n,
		jobs:     make(chan Job),
		shutdown: make(chan struct{}),
	}
	workersGauge.WithLabelValues("shared_queue", id).Set(float64(n))
	for i := 0; i < n; i++ {
		p.spawnWorker()
	}
	return p, nil
}

// spawnWorker starts one worker loop. A worker that recovers from a job
// panic spawns its own replacement before returning, so the net worker
// count is preserved across a panic.
func (p *SharedQueuePool) spawnWorker() {
	p.wg.Add(1)
	go p.workerLoop()
}

// workerLoop is the sentinel-guarded worker body. If job() panics, this
// goroutine unwinds straight to the deferred recover below — the guard
// inspects the panic, spawns a replacement worker attached to the same
// job channel, and lets this goroutine terminate. A worker that exits via
// shutdown or a closed channel never triggers the guard.
func (p *SharedQueuePool) workerLoop() {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			panicsRecovered.WithLabelValues("shared_queue", p.id).Inc()
			if atomic.LoadInt32(&p.closed) == 0 {
				p.spawnWorker()
			}
		}
	}()

	for {
		select {
		case <-p.shutdown:
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

// Submit enqueues job. It blocks only as long as it takes some worker to
// receive from the shared channel; it never returns an error.
func (p *SharedQueuePool) Submit(job Job) {
	jobsSubmitted.WithLabelValues("shared_queue", p.id).Inc()
	select {
	case p.jobs <- job:
	case <-p.shutdown:
	}
}

// Close shuts down all workers and waits for them to exit.
func (p *SharedQueuePool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	close(p.shutdown)
	p.wg.Wait()
	workersGauge.WithLabelValues("shared_queue", p.id).Set(0)
}
