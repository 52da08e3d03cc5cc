package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. It implements the
// service layer's telemetry hooks and the backend client's observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	relayToggles      *prometheus.CounterVec
	timerFires        prometheus.Counter
	alerts            *prometheus.CounterVec
	estimatedCost     *prometheus.GaugeVec
	backendDuration   *prometheus.HistogramVec
	backendErrors     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powersense_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "powersense_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		relayToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powersense_relay_toggles_total",
			Help: "Relay toggles confirmed or rolled back, by result.",
		}, []string{"result"}),
		timerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powersense_timer_fires_total",
			Help: "Relay countdown timers that reached zero.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powersense_alerts_total",
			Help: "Alerts dispatched, by level.",
		}, []string{"level"}),
		estimatedCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powersense_estimated_cost",
			Help: "Last estimated usage cost, by period.",
		}, []string{"period"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "powersense_backend_request_duration_seconds",
			Help:    "Histogram of sensor backend request durations by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powersense_backend_errors_total",
			Help: "Sensor backend requests that failed, by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.relayToggles,
		m.timerFires,
		m.alerts,
		m.estimatedCost,
		m.backendDuration,
		m.backendErrors,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RelayToggled(ok bool) {
	result := "ok"
	if !ok {
		result = "rolled_back"
	}
	m.relayToggles.WithLabelValues(result).Inc()
}

func (m *Metrics) TimerFired() { m.timerFires.Inc() }

func (m *Metrics) AlertRaised(level string) { m.alerts.WithLabelValues(level).Inc() }

func (m *Metrics) CostEstimated(period string, cost float64) {
	m.estimatedCost.WithLabelValues(period).Set(cost)
}

func (m *Metrics) ObserveBackend(op string, d time.Duration, err error) {
	m.backendDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.backendErrors.WithLabelValues(op).Inc()
	}
}
