// Package metrics exposes Prometheus counters and gauges for a running
// exploration or a live replay, served over HTTP via promhttp the same way
// an always-on service would expose its health.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric a checker run reports.
type Registry struct {
	reg *prometheus.Registry

	StepsTotal       prometheus.Counter
	ViolationsTotal  prometheus.Counter
	StatesVisited    prometheus.Gauge
	MailboxOccupancy *prometheus.GaugeVec
}

// New builds a fresh registry; callers should keep exactly one per process,
// the way a long-running service would.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		StepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "c3d",
			Name:      "steps_total",
			Help:      "Total rules fired across the exploration.",
		}),
		ViolationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "c3d",
			Name:      "violations_total",
			Help:      "Total protocol violations discovered.",
		}),
		StatesVisited: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "c3d",
			Name:      "states_visited",
			Help:      "Distinct configurations visited so far.",
		}),
		MailboxOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "c3d",
			Name:      "mailbox_occupancy",
			Help:      "Messages currently queued per node.",
		}, []string{"node"}),
	}
	reg.MustRegister(r.StepsTotal, r.ViolationsTotal, r.StatesVisited, r.MailboxOccupancy)
	return r
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
