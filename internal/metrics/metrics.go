// Package metrics exposes Prometheus instrumentation for the REST pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	envelopes *prometheus.CounterVec
	dispatch  *prometheus.HistogramVec
	gatherer  prometheus.Gatherer
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors with reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restkit",
			Name:      "envelopes_total",
			Help:      "REST envelopes produced, by code and status.",
		}, []string{"code", "status"}),
		dispatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "restkit",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a request through the kernel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request_type"}),
		gatherer: g,
	}
	reg.MustRegister(m.envelopes, m.dispatch)
	return m
}

// ObserveEnvelope counts a finalized envelope.
func (m *Metrics) ObserveEnvelope(env *domain.Envelope) {
	if m == nil || env == nil {
		return
	}
	m.envelopes.WithLabelValues(env.Code, strconv.Itoa(env.StatusCode)).Inc()
}

// ObserveDispatch records the duration of one kernel dispatch.
func (m *Metrics) ObserveDispatch(t domain.RequestType, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(t.String()).Observe(d.Seconds())
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
