// Package telemetry owns the Prometheus registry for the clinic server: HTTP
// request metrics, document mutations, live-update fan-out and the
// fire-and-forget paths (activity log, change feed) whose failures are
// otherwise invisible to callers.
package telemetry

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinicdesk"

// Metrics is safe for concurrent use. A nil *Metrics is a no-op so tests and
// CLI commands can pass nil.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	mutations        *prometheus.CounterVec
	activityFailures prometheus.Counter
	feedFailures     *prometheus.CounterVec
	wsClients        prometheus.Gauge
	bookingConflicts *prometheus.CounterVec
	cascadeUpdates   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_mutations_total",
			Help:      "Document mutations by collection and operation",
		}, []string{"collection", "op"}),
		activityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_log_failures_total",
			Help:      "Activity entries that could not be written",
		}),
		feedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changefeed_publish_failures_total",
			Help:      "Change events that could not be published",
		}, []string{"collection"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live-update clients",
		}),
		bookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Rejected bookings by resource kind",
		}, []string{"kind"}),
		cascadeUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_updates_total",
			Help:      "Denormalized copies rewritten after a source change",
		}, []string{"collection"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.mutations, m.activityFailures,
		m.feedFailures, m.wsClients, m.bookingConflicts, m.cascadeUpdates,
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request count and latency labelled by route template,
// not raw path, to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				var sc interface{ StatusCode() int }
				switch {
				case errors.As(err, &he):
					status = he.Code
				case errors.As(err, &sc):
					status = sc.StatusCode()
				default:
					status = 500
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Mutation(collection, op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(collection, op).Inc()
}

func (m *Metrics) ActivityFailure() {
	if m == nil {
		return
	}
	m.activityFailures.Inc()
}

func (m *Metrics) FeedFailure(collection string) {
	if m == nil {
		return
	}
	m.feedFailures.WithLabelValues(collection).Inc()
}

func (m *Metrics) WebsocketClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

func (m *Metrics) BookingConflict(kind string) {
	if m == nil {
		return
	}
	m.bookingConflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) CascadeUpdate(collection string) {
	if m == nil {
		return
	}
	m.cascadeUpdates.WithLabelValues(collection).Inc()
}
