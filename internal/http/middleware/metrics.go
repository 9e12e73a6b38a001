package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	// Status is left out to keep the histogram small.
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "HTTP requests currently being served.",
	})

	webhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook requests by outcome (accepted, duplicate, rejected).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, httpInflight, webhookDeliveries)
}

// Metrics records request counts, latency and in-flight gauge. Unmatched
// routes are labelled with the raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// CountDelivery bumps the webhook outcome counter.
func CountDelivery(outcome string) {
	webhookDeliveries.WithLabelValues(outcome).Inc()
}
