package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Logger is the subset of logger.Logger used here.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// Options configures New. Registerer defaults to the Prometheus default
// registerer; tests pass a fresh registry.
type Options struct {
	ServiceName    string
	JaegerEndpoint string
	Registerer     promclient.Registerer
	Logger         Logger
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	opCounter      otelmetric.Int64Counter
	opDuration     otelmetric.Float64Histogram
}

// New builds meter and tracer providers. Exporter failures degrade to no-op
// instruments rather than failing startup.
func New(opts Options) *Observability {
	o := &Observability{
		tracer: tracenoop.NewTracerProvider().Tracer(opts.ServiceName),
	}
	meter := noop.NewMeterProvider().Meter(opts.ServiceName)

	exporterOpts := []prometheus.Option{}
	if opts.Registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		warn(opts.Logger, "failed to create Prometheus exporter", err)
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		meter = o.meterProvider.Meter(opts.ServiceName)
	}

	o.opCounter, _ = meter.Int64Counter(
		"registry_operations",
		otelmetric.WithDescription("Number of registry operations by outcome"),
	)
	o.opDuration, _ = meter.Float64Histogram(
		"registry_operation_duration",
		otelmetric.WithDescription("Registry operation duration"),
		otelmetric.WithUnit("ms"),
	)

	if opts.JaegerEndpoint != "" {
		tp, err := newTracerProvider(opts.ServiceName, opts.JaegerEndpoint)
		if err != nil {
			warn(opts.Logger, "failed to create Jaeger exporter", err)
		} else {
			o.tracerProvider = tp
			o.tracer = tp.Tracer(opts.ServiceName)
		}
	}

	return o
}

func warn(log Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, map[string]interface{}{"error": err})
	}
}

// RecordOperation is a no-op on a nil receiver.
func (o *Observability) RecordOperation(ctx context.Context, operation, result string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	var firstErr error
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
