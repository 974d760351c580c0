package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the API.
type Metrics struct {
	EventsIngested *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
	ReportDuration *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// Rejection reasons for EventsRejected.
const (
	ReasonInvalidPayload = "invalid_payload"
	ReasonRateLimited    = "rate_limited"
	ReasonStoreError     = "store_error"
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_ingested_total",
				Help: "Total number of analytics events accepted",
			},
			[]string{"type"},
		),
		EventsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_rejected_total",
				Help: "Total number of analytics events rejected",
			},
			[]string{"reason"},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_report_duration_seconds",
				Help:    "Time taken to build an analytics report",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.EventsIngested,
		m.EventsRejected,
		m.ReportDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveReport records how long a report of the given kind took.
func (m *Metrics) ObserveReport(kind string, started time.Time) {
	m.ReportDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// Middleware records request count and latency per matched route. Unmatched
// requests are grouped under "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
