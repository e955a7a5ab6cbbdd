// Package telemetry sets up OpenTelemetry tracing and metrics for repovec
// runs.
//
// Telemetry is off unless enabled in configuration. When on, spans and
// metrics are exported over OTLP (gRPC or HTTP) and the SDK providers are
// installed globally so every package picks them up through otel.Tracer
// and otel.Meter. Exporter setup failures never abort a run: the instance
// degrades to the global noop providers and reports why through Degraded.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "repovec"

const shutdownTimeout = 5 * time.Second

// Telemetry owns the tracer and meter providers for one process.
type Telemetry struct {
	cfg      config.TelemetryConfig
	provider *sdktrace.TracerProvider
	meters   *sdkmetric.MeterProvider
	degraded string
}

// Option configures New.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	reader   sdkmetric.Reader
	version  string
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithVersion sets service.version.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// New creates telemetry from cfg. A disabled config returns an instance
// backed by the global provider. The error return is reserved for invalid
// configuration.
func New(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (*Telemetry, error) {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	exp := o.exporter
	if exp == nil {
		var err error
		exp, err = newExporter(ctx, cfg)
		if err != nil {
			t.degraded = err.Error()
			return t, nil
		}
	}

	res := newResource(o.version)
	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(t.provider)

	reader := o.reader
	if reader == nil {
		mexp, err := newMetricExporter(ctx, cfg)
		if err != nil {
			// Tracing stays on.
			t.degraded = err.Error()
		} else {
			reader = sdkmetric.NewPeriodicReader(mexp, sdkmetric.WithInterval(metricsInterval(cfg)))
		}
	}
	if reader != nil {
		t.meters = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		otel.SetMeterProvider(t.meters)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if t == nil || t.provider == nil {
		return otel.Tracer(name)
	}
	return t.provider.Tracer(name)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string) metric.Meter {
	if t == nil || t.meters == nil {
		return otel.Meter(name)
	}
	return t.meters.Meter(name)
}

// Enabled reports whether spans are being exported.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.provider != nil
}

// Degraded returns the reason tracing was requested but is not active.
func (t *Telemetry) Degraded() (string, bool) {
	if t == nil || t.degraded == "" {
		return "", false
	}
	return t.degraded, true
}

// Shutdown flushes pending spans and metrics. Without a deadline on ctx
// it waits at most five seconds.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || (t.provider == nil && t.meters == nil) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}
	var errs []error
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if t.provider != nil {
		if err := t.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func metricsInterval(cfg config.TelemetryConfig) time.Duration {
	if d := cfg.MetricsInterval.Duration(); d > 0 {
		return d
	}
	return 15 * time.Second
}

func newSampler(rate float64) sdktrace.Sampler {
	var s sdktrace.Sampler
	switch {
	case rate >= 1.0:
		s = sdktrace.AlwaysSample()
	case rate <= 0:
		s = sdktrace.NeverSample()
	default:
		s = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(s)
}
