// Package metrics holds the Prometheus collectors for escrow and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EscrowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Committed escrow state changes by event type",
		},
		[]string{"event"},
	)

	EscrowFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_operation_failures_total",
			Help: "Rejected or failed escrow operations",
		},
		[]string{"op", "reason"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Inbound payment webhooks by outcome",
		},
		[]string{"outcome"},
	)

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)

	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_side_effect_failures_total",
			Help: "Audit or notification effects that failed after a committed transition",
		},
		[]string{"kind"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		EscrowTransitions,
		EscrowFailures,
		WebhookEvents,
		GatewayDuration,
		SideEffectFailures,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// ObserveGateway records one gateway call started at start.
func ObserveGateway(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	GatewayDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// Instrument records request counts and latency per matched route.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
