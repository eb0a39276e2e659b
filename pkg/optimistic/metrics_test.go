package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recorded struct {
	reader *sdkmetric.ManualReader
	spans  *tracetest.SpanRecorder
}

// withRecorders points a manager's telemetry at in-memory providers.
func withRecorders(t *testing.T) (*recorded, func(*Options[string])) {
	t.Helper()
	r := &recorded{reader: sdkmetric.NewManualReader(), spans: tracetest.NewSpanRecorder()}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(r.reader))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(r.spans))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})
	return r, func(o *Options[string]) {
		o.MeterProvider = mp
		o.TracerProvider = tp
	}
}

// outcomes returns the confirm counter by outcome and the histogram's
// total sample count.
func (r *recorded) outcomes(t *testing.T) (map[string]int64, uint64) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	var samples uint64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				require.Equal(t, "optimistic_confirm_total", md.Name)
				for _, dp := range data.DataPoints {
					v, _ := dp.Attributes.Value(attribute.Key("outcome"))
					counts[v.AsString()] += dp.Value
				}
			case metricdata.Histogram[float64]:
				require.Equal(t, "optimistic_confirm_duration_seconds", md.Name)
				for _, dp := range data.DataPoints {
					samples += dp.Count
				}
			}
		}
	}
	return counts, samples
}

func TestTelemetry_CountsOutcomes(t *testing.T) {
	rec, with := withRecorders(t)
	m, auth, _ := newTestManager(t, with)
	ctx := context.Background()

	a := m.Apply(ctx, "ok")
	auth.next(t).confirm("server-1")
	wait(t, a)

	a = m.Apply(ctx, "bad")
	auth.next(t).fail(errors.New("rejected"))
	wait(t, a)

	a = m.Apply(ctx, "dropped")
	c := auth.next(t)
	require.True(t, m.Cancel(a.ID()))
	c.confirm("server-2")
	wait(t, a)

	counts, samples := rec.outcomes(t)
	assert.Equal(t, map[string]int64{outcomeConfirmed: 1, outcomeFailed: 1, outcomeStale: 1}, counts)
	assert.EqualValues(t, 3, samples)

	spans := rec.spans.Ended()
	require.Len(t, spans, 3)
	var withError int
	for _, s := range spans {
		assert.Equal(t, "optimistic.confirm", s.Name())
		if len(s.Events()) > 0 {
			withError++
		}
	}
	assert.Equal(t, 1, withError, "only the failed confirmation records an error")
}

func TestTelemetry_ProvidersArePerManager(t *testing.T) {
	recA, withA := withRecorders(t)
	recB, withB := withRecorders(t)
	ma, authA, _ := newTestManager(t, withA)
	mb, authB, _ := newTestManager(t, withB)
	ctx := context.Background()

	a := ma.Apply(ctx, "a")
	authA.next(t).confirm("server-a")
	wait(t, a)

	for i := 0; i < 2; i++ {
		b := mb.Apply(ctx, "b")
		authB.next(t).fail(errors.New("offline"))
		wait(t, b)
	}

	countsA, _ := recA.outcomes(t)
	countsB, _ := recB.outcomes(t)
	assert.Equal(t, map[string]int64{outcomeConfirmed: 1}, countsA)
	assert.Equal(t, map[string]int64{outcomeFailed: 2}, countsB)
	assert.Len(t, recA.spans.Ended(), 1)
	assert.Len(t, recB.spans.Ended(), 2)
}
