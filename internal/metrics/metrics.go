// ABOUTME: Prometheus metrics exposition for scan relay activity.
// ABOUTME: Records event outcomes, upstream requests, and issue counts and serves /metrics.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "scanrelay"

type Metrics struct {
	registry *prometheus.Registry
	logger   *logrus.Logger

	eventsProcessed *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	branchFailures  *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	issuesCollected *prometheus.CounterVec
}

// NewMetrics creates the relay metrics on a dedicated registry
func NewMetrics(logger *logrus.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger,

		eventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_events_total",
				Help:      "Number of scan webhook events processed by outcome",
			},
			[]string{"outcome"},
		),

		eventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_event_duration_seconds",
				Help:      "Time taken to relay a scan event",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		branchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "branch_failures_total",
				Help:      "Number of failed processing branches by branch name",
			},
			[]string{"branch"},
		),

		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests sent to external systems by endpoint and status code (0=no response)",
			},
			[]string{"system", "endpoint", "status_code"},
		),

		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Latency of requests sent to external systems",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"system", "endpoint"},
		),

		issuesCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issues_collected_total",
				Help:      "Number of classified issues collected by category",
			},
			[]string{"category"},
		),
	}

	m.registry.MustRegister(
		m.eventsProcessed,
		m.eventDuration,
		m.branchFailures,
		m.upstreamRequests,
		m.upstreamDuration,
		m.issuesCollected,
	)

	return m
}

// ObserveEvent records the outcome and duration of one scan event
func (m *Metrics) ObserveEvent(outcome string, duration time.Duration) {
	m.eventsProcessed.WithLabelValues(outcome).Inc()
	m.eventDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) AddBranchFailure(branch string) {
	m.branchFailures.WithLabelValues(branch).Inc()
}

// ObserveRequest records one request to an external system
func (m *Metrics) ObserveRequest(system, endpoint string, statusCode int, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(system, endpoint, strconv.Itoa(statusCode)).Inc()
	m.upstreamDuration.WithLabelValues(system, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) AddIssues(category string, count int) {
	if count <= 0 {
		return
	}
	m.issuesCollected.WithLabelValues(category).Add(float64(count))
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: m.logger,
	})
}

// CreateMetricsHandler creates a standard HTTP handler that can be used with http.ServeMux
func CreateMetricsHandler(m *Metrics) http.HandlerFunc {
	return m.Handler().ServeHTTP
}
