package kvserver

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// adminMux builds the observability-only HTTP surface: /healthz and
// /metrics. It carries none of the KV wire protocol and is entirely
// separate from the TCP listener handling get/set/rm. A nil registry
// falls back to the default global one.
func newAdminMux(ready *atomic.Bool, reg *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	var metricsHandler http.Handler
	if reg != nil {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	} else {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	return r
}
