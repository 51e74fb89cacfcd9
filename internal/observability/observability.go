// Package observability instruments the integrations and the HTTP API:
// Prometheus metrics on a private registry, OTLP tracing, readiness checks and
// error-rate anomaly logging.
//
// A nil *Observability is valid and records nothing, so services take one
// unconditionally.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sportscouncil/backoffice/internal/config"
)

// Observability groups the enabled components. Disabled ones are nil.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
	Anomaly *AnomalyDetector
	Health  *HealthChecker

	logger *slog.Logger
}

// New builds the components enabled in cfg. A nil cfg disables everything
// and yields a nil *Observability.
func New(cfg *config.ObservabilityConfig, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	tracer, err := NewTracerSetup(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	obs := &Observability{
		Tracer: tracer,
		Health: NewHealthChecker(logger),
		logger: logger,
	}
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
	}
	if cfg.Anomaly != nil && cfg.Anomaly.Enabled {
		obs.Anomaly = NewAnomalyDetector(cfg.Anomaly, logger)
	}
	return obs, nil
}

// Shutdown flushes pending spans.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil || o.Tracer == nil {
		return
	}
	if err := o.Tracer.Shutdown(ctx); err != nil {
		o.logger.Warn("flushing traces", slog.String("error", err.Error()))
	}
}

// TracerOrNil returns the tracer setup, or nil when tracing is disabled.
func (o *Observability) TracerOrNil() *TracerSetup {
	if o == nil {
		return nil
	}
	return o.Tracer
}
