package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "backoffice"

// MetricsCollector holds all Prometheus metrics for the back office.
// Registered on a custom registry, never the default one.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Integration operation metrics.
	IntegrationOperationsTotal   *prometheus.CounterVec
	IntegrationOperationDuration *prometheus.HistogramVec

	// Credential lifecycle metrics.
	CredentialResolutionsTotal *prometheus.CounterVec
	ClientBuildsTotal          *prometheus.CounterVec

	// Integration health, set by the probe.
	IntegrationUp *prometheus.GaugeVec

	// Public contact form.
	ContactSubmissionsTotal *prometheus.CounterVec

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		IntegrationOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integration",
			Name:      "operations_total",
			Help:      "Total integration operations.",
		}, []string{"integration", "operation", "status"}),

		IntegrationOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "integration",
			Name:      "operation_duration_seconds",
			Help:      "Integration operation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"integration", "operation"}),

		CredentialResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "resolutions_total",
			Help:      "Credential bundles resolved, by source.",
		}, []string{"integration", "source"}),

		ClientBuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "client_builds_total",
			Help:      "Vendor clients built from credential bundles.",
		}, []string{"integration", "status"}),

		IntegrationUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "integration",
			Name:      "up",
			Help:      "Whether the last integration check succeeded (1) or failed (0).",
		}, []string{"integration"}),

		ContactSubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Public contact form submissions.",
		}, []string{"status"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.IntegrationOperationsTotal,
		m.IntegrationOperationDuration,
		m.CredentialResolutionsTotal,
		m.ClientBuildsTotal,
		m.IntegrationUp,
		m.ContactSubmissionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
