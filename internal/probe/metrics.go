package probe

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the integration prober.
type Metrics struct {
	Runs        prometheus.Counter
	Failures    *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers prober metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "probe",
			Name:      "runs_total",
			Help:      "Total probe cycles across all integrations.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "probe",
			Name:      "failures_total",
			Help:      "Total failed integration checks.",
		}, []string{"integration"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "backoffice",
			Subsystem: "probe",
			Name:      "run_duration_seconds",
			Help:      "Duration of each probe cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(m.Runs, m.Failures, m.RunDuration)
	return m
}
