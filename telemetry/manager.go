package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/pitabwire/cascade/config"
)

// Manager installs the OpenTelemetry providers used by the engine.
type Manager interface {
	Init(ctx context.Context) error
	Disabled() bool
	Metrics() *Metrics
	// LogHandler bridges slog records into the log pipeline. It is nil until
	// Init runs with a logs exporter.
	LogHandler() slog.Handler
	Shutdown(ctx context.Context) error
}

type manager struct {
	serviceName    string
	serviceVersion string

	disabled bool

	traceExporter sdktrace.SpanExporter
	metricsReader sdkmetrics.Reader
	logsExporter  sdklogs.Exporter

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetrics.MeterProvider
	loggerProvider *sdklogs.LoggerProvider

	metrics    *Metrics
	logHandler slog.Handler
}

// NewManager creates a new telemetry setup manager.
func NewManager(ctx context.Context, cfg config.ConfigurationTelemetry, opts ...Option) Manager {
	m := &manager{
		serviceName: Package,
		disabled:    cfg != nil && cfg.DisableOpenTelemetry(),
	}

	for _, opt := range opts {
		opt(ctx, m)
	}

	return m
}

func (m *manager) Disabled() bool {
	return m.disabled
}

// Metrics returns the engine instruments bound to the installed providers,
// or nil when telemetry is disabled.
func (m *manager) Metrics() *Metrics {
	return m.metrics
}

func (m *manager) LogHandler() slog.Handler {
	return m.logHandler
}

func (m *manager) Init(_ context.Context) error {
	if m.Disabled() {
		return nil
	}

	res, err := m.setupResource()
	if err != nil {
		return err
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	}
	if m.traceExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(m.traceExporter))
	}
	m.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(m.tracerProvider)

	metricOpts := []sdkmetrics.Option{sdkmetrics.WithResource(res)}
	if m.metricsReader != nil {
		metricOpts = append(metricOpts, sdkmetrics.WithReader(m.metricsReader))
	}
	metricOpts = append(metricOpts, sdkmetrics.WithView(Views(Package)...))
	m.meterProvider = sdkmetrics.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(m.meterProvider)

	m.metrics = NewMetrics(m.meterProvider, m.tracerProvider)

	if m.logsExporter != nil {
		m.loggerProvider = sdklogs.NewLoggerProvider(
			sdklogs.WithResource(res),
			sdklogs.WithProcessor(sdklogs.NewBatchProcessor(m.logsExporter)),
		)
		global.SetLoggerProvider(m.loggerProvider)

		m.logHandler = otelslog.NewHandler(Package,
			otelslog.WithSource(true),
			otelslog.WithLoggerProvider(m.loggerProvider),
			otelslog.WithAttributes(res.Attributes()...))
	}

	return nil
}

func (m *manager) setupResource() (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(m.serviceName),
		semconv.ServiceVersion(m.serviceVersion),
		semconv.ProcessPID(os.Getpid()),
		semconv.ProcessRuntimeName("go"),
		semconv.ProcessRuntimeVersion(runtime.Version()),
	))
}

// Shutdown flushes and stops the installed providers.
func (m *manager) Shutdown(ctx context.Context) error {
	var errs []error
	if m.tracerProvider != nil {
		errs = append(errs, m.tracerProvider.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		errs = append(errs, m.meterProvider.Shutdown(ctx))
	}
	if m.loggerProvider != nil {
		errs = append(errs, m.loggerProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
