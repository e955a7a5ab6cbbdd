package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	prevMeters := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		otel.SetMeterProvider(prevMeters)
	})
}

func enabledConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:    true,
		Endpoint:   "localhost:4317",
		Protocol:   "grpc",
		Insecure:   true,
		SampleRate: 1.0,
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)

	assert.False(t, tel.Enabled())
	_, degraded := tel.Degraded()
	assert.False(t, degraded)
	assert.NotNil(t, tel.Tracer("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_ExportsSpans(t *testing.T) {
	restoreGlobalProvider(t)
	exp := tracetest.NewInMemoryExporter()

	tel, err := New(context.Background(), enabledConfig(),
		WithSpanExporter(exp),
		WithMetricReader(sdkmetric.NewManualReader()),
		WithVersion("1.2.3"))
	require.NoError(t, err)
	require.True(t, tel.Enabled())

	_, span := otel.Tracer("repovec/test").Start(context.Background(), "stage")
	span.End()

	// Shutdown also resets the in-memory exporter.
	require.NoError(t, tel.provider.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.NoError(t, tel.Shutdown(context.Background()))

	require.Len(t, spans, 1)
	assert.Equal(t, "stage", spans[0].Name)

	var service, version string
	for _, kv := range spans[0].Resource.Attributes() {
		switch kv.Key {
		case attribute.Key("service.name"):
			service = kv.Value.AsString()
		case attribute.Key("service.version"):
			version = kv.Value.AsString()
		}
	}
	assert.Equal(t, ServiceName, service)
	assert.Equal(t, "1.2.3", version)
}

func TestNew_InstallsMeterProvider(t *testing.T) {
	restoreGlobalProvider(t)
	reader := sdkmetric.NewManualReader()

	tel, err := New(context.Background(), enabledConfig(),
		WithSpanExporter(tracetest.NewInMemoryExporter()),
		WithMetricReader(reader))
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	tests := []struct {
		name  string
		meter metric.Meter
	}{
		{"global", otel.Meter("repovec/test")},
		{"instance", tel.Meter("repovec/test")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := tt.meter.Int64Counter("repovec.test." + tt.name)
			require.NoError(t, err)
			counter.Add(context.Background(), 3)

			var rm metricdata.ResourceMetrics
			require.NoError(t, reader.Collect(context.Background(), &rm))

			var total int64
			for _, sm := range rm.ScopeMetrics {
				for _, m := range sm.Metrics {
					if m.Name != "repovec.test."+tt.name {
						continue
					}
					sum, ok := m.Data.(metricdata.Sum[int64])
					require.True(t, ok)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
				}
			}
			assert.Equal(t, int64(3), total)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"no endpoint", config.TelemetryConfig{Enabled: true, SampleRate: 1}},
		{"bad protocol", config.TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "udp"}},
		{"bad rate", config.TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: 2}},
		{"insecure remote", config.TelemetryConfig{Enabled: true, Endpoint: "collector.example.com:4317", Insecure: true, SampleRate: 1}},
		{"negative metrics interval", config.TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: 1, MetricsInterval: config.Duration(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1", true},
		{"[::1]:4317", true},
		{"http://localhost:4318", true},
		{"collector.example.com:4317", false},
		{"10.0.0.5:4317", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := isLocalEndpoint(tt.endpoint); got != tt.want {
				t.Errorf("isLocalEndpoint(%q) = %v, want %v", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()
	_, span := tt.Tracer("x").Start(context.Background(), "load")
	span.SetAttributes(attribute.Int("chunks", 3))
	span.End()

	tt.AssertSpanExists(t, "load")
	tt.AssertSpanAttribute(t, "load", "chunks", int64(3))
}
