package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// ProcessRegistry exposes the ambient Go process metrics (GC pauses,
// goroutine counts, build info) that prometheus/client_golang collects
// by default, kept entirely separate from the domain counters Sink
// renders — this is operational visibility into the binary, not the
// queue's own domain exposition.
type ProcessRegistry struct {
	registry *prometheus.Registry
}

// NewProcessRegistry builds a registry preloaded with the standard Go
// process and build-info collectors.
func NewProcessRegistry() *ProcessRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewBuildInfoCollector())
	return &ProcessRegistry{registry: reg}
}

// Handler returns the http.Handler to mount at the ambient metrics path
// (distinct from the domain /metrics endpoint).
func (p *ProcessRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
