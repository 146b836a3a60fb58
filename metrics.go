package jobsculpt

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. They are registered on the given
// registerer rather than the global one so tests can build many instances.
type Metrics struct {
	activity        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	notificationErr prometheus.Counter
}

// NewMetrics creates and registers the collectors
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "jobsculpt"
	}

	m := &Metrics{
		activity: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_events_total",
				Help:      "Total number of activity events by type",
			},
			[]string{"event"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationErr: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Total number of notifications that could not be sent",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.activity, m.httpRequests, m.httpDuration, m.notificationErr)
	}

	return m
}

// Record implements ActivitySink by counting events
func (m *Metrics) Record(_ context.Context, event ActivityEvent) error {
	m.activity.WithLabelValues(string(event.EventType)).Inc()
	if event.EventType == ActivityEventNotificationFailure {
		m.notificationErr.Inc()
	}
	return nil
}

// Middleware records request counts and latency per route pattern
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = AsError(err).Code
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		path := c.Route().Path
		m.httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return err
	}
}
