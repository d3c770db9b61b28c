package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Units are encoded according to the case-sensitive abbreviations from the
// Unified Code for Units of Measure: http://unitsofmeasure.org/ucum.html.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
)

// Package is the instrumentation scope of every cascade instrument.
const Package = "cascade"

// Fetch kinds, one per file the loader may request.
const (
	KindManifest = "manifest"
	KindBase     = "base"
	KindUserType = "userType"
	KindPersona  = "persona"
	KindMode     = "mode"
)

// Outcome labels.
const (
	StatusOK       = "ok"
	StatusMissing  = "missing"
	StatusError    = "error"
	StatusHit      = "hit"
	StatusDefault  = "default"
	StatusShared   = "shared"
	StatusDiscard  = "discarded"
	StatusDegraded = "degraded"
)

var (
	defaultMillisecondsBoundaries = []float64{ //nolint:gochecknoglobals // histogram boundaries are shared by every view
		0.0, 0.1, 0.2, 0.4, 0.6, 0.8, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 8.0, 10.0,
		13.0, 16.0, 20.0, 25.0, 30.0, 40.0, 50.0, 65.0, 80.0, 100.0, 130.0,
		160.0, 200.0, 250.0, 300.0, 400.0, 500.0, 650.0, 800.0, 1000.0, 2000.0,
		5000.0, 10000.0,
	}
)

// Views shapes the latency histogram of pkg and derives a completed calls
// counter from it.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind == sdkmetric.InstrumentKindHistogram && inst.Name == pkg+"/latency" {
				return sdkmetric.Stream{
					Name:        inst.Name,
					Description: "Distribution of method latency, by method and status.",
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: defaultMillisecondsBoundaries,
					},
					AttributeFilter: func(kv attribute.KeyValue) bool {
						return kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
					},
				}, true
			}
			return sdkmetric.Stream{}, false
		},

		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind == sdkmetric.InstrumentKindHistogram && inst.Name == pkg+"/latency" {
				return sdkmetric.Stream{
					Name:        strings.Replace(inst.Name, "/latency", "/completed_calls", 1),
					Description: "Count of method calls by method and status.",
					Aggregation: sdkmetric.DefaultAggregationSelector(sdkmetric.InstrumentKindCounter),
					AttributeFilter: func(kv attribute.KeyValue) bool {
						return kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
					},
				}, true
			}
			return sdkmetric.Stream{}, false
		},
	}
}

// LatencyMeasure returns the method call latency histogram of pkg.
func LatencyMeasure(mp metric.MeterProvider, pkg string) metric.Float64Histogram {
	pkgMeter := mp.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))

	m, err := pkgMeter.Float64Histogram(
		pkg+"/latency",
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// only invalid instrument names fail, a programming error
		panic(fmt.Sprintf("fullName=%q: %v", pkg, err))
	}
	return m
}

// DimensionlessMeasure creates a simple counter for dimensionless measurements.
func DimensionlessMeasure(mp metric.MeterProvider, pkg string, meterName string, description string) metric.Int64Counter {
	pkgMeter := mp.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))

	m, err := pkgMeter.Int64Counter(
		pkg+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("fullName=%q: %v", pkg+meterName, err))
	}
	return m
}

// Metrics records what the engine fetches, loads and resolves.
// A nil *Metrics records nothing.
type Metrics struct {
	fetches metric.Int64Counter
	lookups metric.Int64Counter
	loads   metric.Int64Counter
	tracer  Tracer
}

// NewMetrics registers the cascade instruments. Nil providers fall back to
// the global ones.
func NewMetrics(mp metric.MeterProvider, tp trace.TracerProvider) *Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Metrics{
		fetches: DimensionlessMeasure(mp, Package, "/fetches", "Translation files requested from the store, by kind and status."),
		lookups: DimensionlessMeasure(mp, Package, "/lookups", "Key lookups, by whether a translation or the default was returned."),
		loads:   DimensionlessMeasure(mp, Package, "/loads", "Module loads, by outcome."),
		tracer:  newTracer(Package, tp, mp),
	}
}

func (m *Metrics) RecordFetch(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(AttrKindKey.String(kind), AttrStatusKey.String(status)))
}

func (m *Metrics) RecordLookup(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(AttrStatusKey.String(status)))
}

func (m *Metrics) RecordLoad(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.loads.Add(ctx, 1, metric.WithAttributes(AttrStatusKey.String(status)))
}

// Tracer returns the span tracer; it is a no-op tracer for a nil *Metrics.
func (m *Metrics) Tracer() Tracer {
	if m == nil {
		return noopTracer{}
	}
	return m.tracer
}

type noopTracer struct{}

//nolint:spancheck // the span is a no-op
func (noopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (noopTracer) End(_ context.Context, _ trace.Span, _ error, _ ...trace.SpanEndOption) {}
