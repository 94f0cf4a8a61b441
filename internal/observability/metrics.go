package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "campaign_dispatch"

// Metrics stores Prometheus collectors used by the API, listeners, sweep and
// dispatch pool.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	eventsReceivedTotal   *prometheus.CounterVec
	reportFailuresTotal   *prometheus.CounterVec
	deliveriesTotal       *prometheus.CounterVec
	attemptsTotal         *prometheus.CounterVec
	attemptDuration       *prometheus.HistogramVec
	retryScheduledTotal   *prometheus.CounterVec
	queueRejectedTotal    *prometheus.CounterVec
	dispatchInflight      prometheus.Gauge
	sweepEvaluationsTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		eventsReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_received_total",
				Help:      "Total number of ledger events received by kind.",
			},
			[]string{"kind"},
		),
		reportFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "report_resolution_failures_total",
				Help:      "Total number of campaign reports that could not be resolved.",
			},
			[]string{"trigger"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deliveries_total",
				Help:      "Total number of dispatches that reached a terminal status.",
			},
			[]string{"trigger", "status"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_attempts_total",
				Help:      "Total number of HTTP delivery attempts by result.",
			},
			[]string{"trigger", "result"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_attempt_duration_seconds",
				Help:      "Endpoint call duration in seconds grouped by trigger.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"trigger"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "retry_scheduled_total",
				Help:      "Total number of delivery retries scheduled.",
			},
			[]string{"trigger"},
		),
		queueRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_queue_rejected_total",
				Help:      "Total number of dispatches rejected because the queue was full.",
			},
			[]string{"trigger"},
		),
		dispatchInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_inflight",
				Help:      "Current number of accepted dispatches not yet in a terminal status.",
			},
		),
		sweepEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sweep_evaluations_total",
				Help:      "Total number of calendar sweep (campaign, client) evaluations by result.",
			},
			[]string{"trigger", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eventsReceivedTotal,
		m.reportFailuresTotal,
		m.deliveriesTotal,
		m.attemptsTotal,
		m.attemptDuration,
		m.retryScheduledTotal,
		m.queueRejectedTotal,
		m.dispatchInflight,
		m.sweepEvaluationsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEventReceived(kind string) {
	if m == nil {
		return
	}
	m.eventsReceivedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncReportFailure(trigger string) {
	if m == nil {
		return
	}
	m.reportFailuresTotal.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (m *Metrics) IncDelivery(trigger string, status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(trigger), normalizeLabel(status)).Inc()
}

func (m *Metrics) IncAttempt(trigger string, result string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(normalizeLabel(trigger), normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveAttemptDuration(trigger string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.attemptDuration.WithLabelValues(normalizeLabel(trigger)).Observe(seconds)
}

func (m *Metrics) IncRetryScheduled(trigger string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (m *Metrics) IncQueueRejected(trigger string) {
	if m == nil {
		return
	}
	m.queueRejectedTotal.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (m *Metrics) IncDispatchInFlight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Inc()
}

func (m *Metrics) DecDispatchInFlight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Dec()
}

func (m *Metrics) IncSweepEvaluation(trigger string, result string) {
	if m == nil {
		return
	}
	m.sweepEvaluationsTotal.WithLabelValues(normalizeLabel(trigger), normalizeLabel(result)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

// normalizeLabel lowercases label values and maps trigger names such as
// "Loan Approved - API" to "loan_approved_api".
func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range normalized {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
