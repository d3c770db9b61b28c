package telemetry

import (
	"context"

	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Option func(ctx context.Context, m *manager)

// WithServiceName sets the service name for resource tagging.
func WithServiceName(name string) Option {
	return func(_ context.Context, s *manager) {
		s.serviceName = name
	}
}

// WithServiceVersion sets the service version for resource tagging.
func WithServiceVersion(version string) Option {
	return func(_ context.Context, s *manager) {
		s.serviceVersion = version
	}
}

// WithTraceExporter specifies the trace exporter to use.
func WithTraceExporter(exporter sdktrace.SpanExporter) Option {
	return func(_ context.Context, s *manager) {
		s.traceExporter = exporter
	}
}

// WithMetricsReader specifies the metrics reader for the service.
func WithMetricsReader(reader sdkmetrics.Reader) Option {
	return func(_ context.Context, s *manager) {
		s.metricsReader = reader
	}
}

// WithLogsExporter routes records logged through LogHandler to exporter.
func WithLogsExporter(exporter sdklogs.Exporter) Option {
	return func(_ context.Context, s *manager) {
		s.logsExporter = exporter
	}
}
