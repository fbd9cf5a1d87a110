// Package metrics exposes the Prometheus collectors served on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors so tests can use a private registry.
type Metrics struct {
	Registrations   *prometheus.CounterVec
	StatusUpdates   *prometheus.CounterVec
	Wipes           prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "registrations_total",
			Help:      "Registrations by outcome.",
		}, []string{"outcome"}),
		StatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "status_updates_total",
			Help:      "Accepted status changes by target status.",
		}, []string{"status"}),
		Wipes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "wipes_total",
			Help:      "Times every participant was deleted.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.Registrations, m.StatusUpdates, m.Wipes, m.RequestDuration)
	return m
}

// GinMiddleware observes request latency keyed by the matched route
// template, so ids do not explode label cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
