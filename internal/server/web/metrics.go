package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus collectors served under /metrics. A
// private registry keeps the output to our own series and lets tests
// build as many servers as they like.
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	requests5xx     prometheus.Counter
	requestDuration prometheus.Histogram
}

func newMetrics(pool DBPool, startedAt time.Time) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatdb_requests_total",
			Help: "Total HTTP requests",
		}),
		requests5xx: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatdb_requests_5xx_total",
			Help: "Total 5xx responses",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatdb_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
	}

	poolActive := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatdb_pool_connections_active",
		Help: "Connections currently checked out of the pool",
	}, func() float64 { return float64(pool.Stat().AcquiredConns) })

	poolIdle := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatdb_pool_connections_idle",
		Help: "Idle connections in the pool",
	}, func() float64 { return float64(pool.Stat().IdleConns) })

	poolTotal := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatdb_pool_connections_total",
		Help: "Total connections in the pool",
	}, func() float64 { return float64(pool.Stat().TotalConns) })

	poolMax := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatdb_pool_connections_max_size",
		Help: "Configured max pool size",
	}, func() float64 { return float64(pool.Stat().MaxConns) })

	poolMin := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatdb_pool_connections_min_size",
		Help: "Configured min pool size",
	}, func() float64 { return float64(pool.Stat().MinConns) })

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatdb_uptime_seconds",
		Help: "Seconds since the server started",
	}, func() float64 { return time.Since(startedAt).Seconds() })

	m.registry.MustRegister(
		m.requestsTotal, m.requests5xx, m.requestDuration,
		poolActive, poolIdle, poolTotal, poolMax, poolMin, uptime,
	)
	return m
}

func (s *HTTPServer) collectRequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.metrics.requestsTotal.Inc()
		s.metrics.requestDuration.Observe(time.Since(start).Seconds())
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.metrics.requests5xx.Inc()
		}
	}
}
