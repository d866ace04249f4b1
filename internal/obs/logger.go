// Package obs centralizes construction of this service's zap logger and
// prometheus registry, factoring out what would otherwise be scattered
// zap.NewProduction() calls at every entry point.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewLogger builds a zap logger: development mode (human-readable,
// debug-level) when dev is true, production mode (JSON, info-level)
// otherwise.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewRegistry returns a fresh prometheus registry pre-populated with the
// standard process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())
	return reg
}
