package engine

import "github.com/prometheus/client_golang/prometheus"

// engineMetrics is a small bundle of prometheus collectors constructed
// once per engine instance and passed down to whichever path needs them.
type engineMetrics struct {
	sets         prometheus.Counter
	gets         prometheus.Counter
	removes      prometheus.Counter
	compactions  prometheus.Counter
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	corruptLines prometheus.Counter
	breakerTrips prometheus.Counter
}

func newEngineMetrics(reg prometheus.Registerer, engineName string) *engineMetrics {
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvs",
			Subsystem:   "engine",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"engine": engineName},
		})
		if reg != nil {
			_ = reg.Register(c)
		}
		return c
	}
	return &engineMetrics{
		sets:         factory("sets_total", "Total set operations."),
		gets:         factory("gets_total", "Total get operations."),
		removes:      factory("removes_total", "Total remove operations."),
		compactions:  factory("compactions_total", "Total compactions performed."),
		cacheHits:    factory("cache_hits_total", "Total read-cache hits."),
		cacheMisses:  factory("cache_misses_total", "Total read-cache misses."),
		corruptLines: factory("corrupt_lines_total", "Total corrupt log lines encountered on read-through."),
		breakerTrips: factory("breaker_trips_total", "Total times the writer circuit breaker tripped open."),
	}
}
