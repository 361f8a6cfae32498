// Package metrics exposes shopgate's Prometheus metrics on a private
// registry, served from its own listener outside the access policy.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/shopgate/internal/audit"
)

const namespace = "shopgate"

// Collector owns the registry and every shopgate metric.
type Collector struct {
	registry   *prometheus.Registry
	authEvents *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

// New creates a Collector with Go runtime and process collectors registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: reg,
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication audit events by action.",
		}, []string{"action"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Access policy decisions by outcome.",
		}, []string{"decision"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	reg.MustRegister(c.authEvents, c.decisions, c.requests)
	return c
}

// Write implements audit.Sink by counting the event's action.
func (c *Collector) Write(_ context.Context, e *audit.Event) error {
	c.authEvents.WithLabelValues(e.Action).Inc()
	return nil
}

// ObserveDecision counts one access policy decision.
func (c *Collector) ObserveDecision(decision string) {
	c.decisions.WithLabelValues(decision).Inc()
}

// ObserveRequest records a completed HTTP request.
func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// RegisterAuditDropped exposes the audit dispatcher's drop count.
func (c *Collector) RegisterAuditDropped(dropped func() uint64) {
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Audit events dropped because the dispatcher queue was full.",
	}, func() float64 { return float64(dropped()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
