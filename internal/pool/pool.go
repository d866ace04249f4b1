// Package pool provides three interchangeable thread-pool implementations
// for running Job closures: a naive pool that starts a goroutine per job,
// and two pools that run jobs on a fixed worker population, mirroring the
// worker-pool-over-a-channel shape the rest of this service uses (see
// internal/engine).
package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Job is a unit of work submitted to a Pool. A Job must not block
// indefinitely on pool-internal state; it may panic without affecting
// the pool or other jobs.
type Job func()

// Pool accepts jobs and runs them on some worker population.
type Pool interface {
	// Submit queues job for execution. Submit is infallible from the
	// caller's point of view: a panicking job never returns an error to
	// Submit's caller, and never corrupts the pool.
	Submit(job Job)
	// Close releases pool resources. Implementations that own
	// background goroutines stop them; Close is idempotent.
	Close()
}

var (
	workersGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kvs",
		Subsystem: "pool",
		Name:      "workers",
		Help:      "Number of live worker goroutines per pool instance.",
	}, []string{"variant", "pool_id"})

	jobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvs",
		Subsystem: "pool",
		Name:      "jobs_submitted_total",
		Help:      "Total jobs submitted to a pool instance.",
	}, []string{"variant", "pool_id"})

	panicsRecovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvs",
		Subsystem: "pool",
		Name:      "panics_recovered_total",
		Help:      "Total job panics recovered by a pool instance.",
	}, []string{"variant", "pool_id"})
)

// Metrics registers this package's collectors with reg. Safe to call once
// per process; repeated registration with the same registry is a no-op
// error that callers may ignore.
func Metrics(reg prometheus.Registerer) {
	_ = reg.Register(workersGauge)
	_ = reg.Register(jobsSubmitted)
	_ = reg.Register(panicsRecovered)
}

func runRecovered(variant, poolID string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			panicsRecovered.WithLabelValues(variant, poolID).Inc()
		}
	}()
	job()
}
