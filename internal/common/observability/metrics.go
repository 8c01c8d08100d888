package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records sweep-level instruments through OpenTelemetry. The
// prometheus exporter registers with the default registry so the values show
// up on /metrics next to the promauto collectors.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	sweepCounter  otelmetric.Int64Counter
	sweepDuration otelmetric.Float64Histogram
	emitted       otelmetric.Int64Counter
}

// New builds the meter provider. On exporter failure it returns a recorder
// that drops everything together with the error.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName), nil
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	sweepCounter, _ := meter.Int64Counter(
		"sweeps.processed",
		otelmetric.WithDescription("Number of rule engine sweeps"),
	)

	sweepDuration, _ := meter.Float64Histogram(
		"sweeps.duration",
		otelmetric.WithDescription("Rule engine sweep duration"),
		otelmetric.WithUnit("ms"),
	)

	emitted, _ := meter.Int64Counter(
		"notifications.emitted",
		otelmetric.WithDescription("Notifications emitted per sweep"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		sweepCounter:  sweepCounter,
		sweepDuration: sweepDuration,
		emitted:       emitted,
	}
}

// RecordSweep records one finished sweep.
func (o *Observability) RecordSweep(ctx context.Context, duration time.Duration, emitted int, status string) {
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.sweepCounter != nil {
		o.sweepCounter.Add(ctx, 1, attrs)
	}
	if o.sweepDuration != nil {
		o.sweepDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.emitted != nil && emitted > 0 {
		o.emitted.Add(ctx, int64(emitted))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
