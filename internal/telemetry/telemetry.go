// Package telemetry exposes import counters through OpenTelemetry metrics.
//
// Metrics are off by default: Init installs a no-op meter provider unless
// stdout export is requested, in which case readings are printed periodically.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"FeedsImporter/internal/ports"
)

const instrumentationScope = "FeedsImporter"

// Init configures the global meter provider and returns its shutdown function.
func Init(stdout bool, interval time.Duration) (func(context.Context) error, error) {
	if !stdout {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// Recorder counts item outcomes and deleted records.
type Recorder struct {
	items   metric.Int64Counter
	deleted metric.Int64Counter
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder creates the instruments on the given meter provider, or the
// global one when mp is nil.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationScope)

	items, err := meter.Int64Counter("feeds.import.items",
		metric.WithDescription("Items processed by outcome"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: items counter: %w", err)
	}

	deleted, err := meter.Int64Counter("feeds.clear.deleted",
		metric.WithDescription("Records deleted by clear runs"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: deleted counter: %w", err)
	}

	return &Recorder{items: items, deleted: deleted}, nil
}

// RecordItem adds one item with the given outcome.
func (r *Recorder) RecordItem(ctx context.Context, processorID, outcome string) {
	r.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String("processor", processorID),
		attribute.String("outcome", outcome),
	))
}

// RecordDeleted adds count deleted records.
func (r *Recorder) RecordDeleted(ctx context.Context, processorID string, count int) {
	r.deleted.Add(ctx, int64(count), metric.WithAttributes(attribute.String("processor", processorID)))
}
