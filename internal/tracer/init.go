package tracer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/daviddao/optimist/internal/config"
)

const serviceName = "optimist"

// Init installs an OTLP/HTTP tracer provider (compatible with Jaeger) and a
// meter provider that exports to cfg.MetricsPath when cfg.Enabled is set.
// It returns the shutdown function to call on exit, which flushes both.
// When telemetry is disabled, or a provider cannot be built, that provider
// is left at the otel default.
func Init(ctx context.Context, cfg config.OtelConfig, log *zap.Logger) func(context.Context) error {
	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
	if !cfg.Enabled {
		log.Debug("opentelemetry disabled (set OTEL_ENABLED=true to enable)")
		return shutdown
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	if tp, err := initTracer(ctx, cfg, res); err != nil {
		log.Warn("create otlp exporter, tracing disabled", zap.Error(err))
	} else {
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
		log.Info("opentelemetry tracer initialized", zap.String("endpoint", cfg.Endpoint))
	}

	if mp, closeFile, err := initMeter(cfg, res); err != nil {
		log.Warn("create metric exporter, metrics disabled", zap.Error(err))
	} else {
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown, closeFile)
		log.Info("opentelemetry meter initialized", zap.String("path", cfg.MetricsPath))
	}

	return shutdown
}

func initTracer(ctx context.Context, cfg config.OtelConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// initMeter exports metrics as JSON lines to a rotated file. The returned
// close func releases the file after the provider has flushed.
func initMeter(cfg config.OtelConfig, res *resource.Resource) (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	if cfg.MetricsPath == "" {
		return nil, nil, errors.New("no metrics path configured")
	}
	w := &lumberjack.Logger{
		Filename:   cfg.MetricsPath,
		MaxSize:    10, // Megabytes
		MaxBackups: 3,
		Compress:   true,
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	return mp, func(context.Context) error { return w.Close() }, nil
}
