package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sportscouncil/backoffice/internal/credentials"
)

// StartOperation begins instrumenting one integration operation. The returned
// done func records the outcome; it must be called exactly once. Safe on a nil
// receiver.
func (o *Observability) StartOperation(ctx context.Context, integration, operation string) (context.Context, func(error)) {
	if o == nil {
		return ctx, func(error) {}
	}

	var span trace.Span
	if o.Tracer != nil {
		ctx, span = o.Tracer.Tracer().Start(ctx, integration+"."+operation,
			trace.WithAttributes(
				attribute.String("integration.name", integration),
				attribute.String("integration.operation", operation),
			))
	}
	start := time.Now()

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status, _ = credentials.Classify(integration, err)
		}

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, status)
			}
			span.End()
		}

		if o.Metrics != nil {
			o.Metrics.IntegrationOperationsTotal.WithLabelValues(integration, operation, status).Inc()
			o.Metrics.IntegrationOperationDuration.WithLabelValues(integration, operation).Observe(time.Since(start).Seconds())
		}

		key := integration + "." + operation
		if err != nil {
			o.Anomaly.RecordError(key)
		} else {
			o.Anomaly.RecordSuccess(key)
		}
	}
}

// CredentialsResolved implements credentials.Observer.
func (o *Observability) CredentialsResolved(integration string, source credentials.Source) {
	if o == nil || o.Metrics == nil {
		return
	}
	o.Metrics.CredentialResolutionsTotal.WithLabelValues(integration, string(source)).Inc()
}

// ClientBuilt implements credentials.Observer.
func (o *Observability) ClientBuilt(integration string, err error) {
	if o == nil || o.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	o.Metrics.ClientBuildsTotal.WithLabelValues(integration, status).Inc()
}

// SetIntegrationUp records the result of the latest integration check.
func (o *Observability) SetIntegrationUp(integration string, up bool) {
	if o == nil || o.Metrics == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	o.Metrics.IntegrationUp.WithLabelValues(integration).Set(v)
}

// RecordContact counts a public contact form submission by status.
func (o *Observability) RecordContact(status string) {
	if o == nil || o.Metrics == nil {
		return
	}
	o.Metrics.ContactSubmissionsTotal.WithLabelValues(status).Inc()
}

var _ credentials.Observer = (*Observability)(nil)
