package optimistic

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/daviddao/optimist/pkg/optimistic"

// Resolution outcomes, used as the "outcome" metric/span attribute.
const (
	outcomeConfirmed = "confirmed"
	outcomeFailed    = "failed"
	outcomeStale     = "stale"
)

// telemetry holds one Manager's tracer and instruments.
type telemetry struct {
	tracer   trace.Tracer
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// newTelemetry builds instruments from tp and mp, falling back to the
// global providers when either is nil.
func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	total, err := meter.Int64Counter(
		"optimistic_confirm_total",
		metric.WithDescription("Confirmation resolutions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create confirm counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"optimistic_confirm_duration_seconds",
		metric.WithDescription("Time from confirm invocation to resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create confirm histogram: %w", err)
	}
	return &telemetry{tracer: tp.Tracer(instrumentationName), total: total, duration: duration}, nil
}

// startSpan creates a span around one confirm invocation.
func (t *telemetry) startSpan(ctx context.Context, id string, seq uint64, retry bool) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "optimistic.confirm",
		trace.WithAttributes(
			attribute.String("optimistic.entity_id", id),
			attribute.Int64("optimistic.attempt", int64(seq)),
			attribute.Bool("optimistic.retry", retry),
		),
	)
}

// endSpan records the outcome on span and ends it.
func (t *telemetry) endSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("optimistic.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// record counts one resolved confirmation and its latency.
func (t *telemetry) record(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	t.total.Add(ctx, 1, attrs)
	t.duration.Record(ctx, elapsed.Seconds(), attrs)
}
