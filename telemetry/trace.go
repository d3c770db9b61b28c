package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys used across cascade.
//
//nolint:gochecknoglobals // OpenTelemetry attribute keys must be global for reuse
var (
	AttrMethodKey  = attribute.Key("cascade_method")
	AttrPackageKey = attribute.Key("cascade_package")
	AttrStatusKey  = attribute.Key("cascade_status")
	AttrErrorKey   = attribute.Key("cascade_error")
	AttrKindKey    = attribute.Key("cascade_kind")
)

type contextKey string

const (
	startTimeContextKey  contextKey = "spanStartTimeCtxKey"
	methodNameContextKey contextKey = "methodNameCtxKey"
)

type tracer struct {
	name           string
	tracer         trace.Tracer
	latencyMeasure metric.Float64Histogram
}

// NewTracer creates a tracer for a package on the global providers.
func NewTracer(name string, options ...trace.TracerOption) Tracer {
	return newTracer(name, otel.GetTracerProvider(), otel.GetMeterProvider(), options...)
}

func newTracer(
	name string,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	options ...trace.TracerOption,
) Tracer {
	return &tracer{
		name:           name,
		tracer:         tp.Tracer(name, options...),
		latencyMeasure: LatencyMeasure(mp, name),
	}
}

// Start creates and starts a new span and returns the updated context and span.
// The caller is responsible for ending the span.
//
//nolint:spancheck // spans are returned to the caller which ends them
func (t *tracer) Start(
	ctx context.Context,
	spanName string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	fullName := t.name + "/" + spanName

	options = append(options, trace.WithAttributes(AttrMethodKey.String(spanName)))

	sCtx, span := t.tracer.Start(ctx, spanName, options...)
	sCtx = context.WithValue(sCtx, startTimeContextKey, time.Now())
	return context.WithValue(sCtx, methodNameContextKey, fullName), span
}

// End completes a span with error information if applicable.
func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	startTimeValue := ctx.Value(startTimeContextKey)
	startTime, ok := startTimeValue.(time.Time)
	if !ok {
		util.Log(ctx).WithField("value", startTimeValue).Error("invalid startTime context value")
		return
	}
	elapsed := time.Since(startTime)

	if err != nil {
		options = append(options, trace.WithStackTrace(true))

		span.SetAttributes(AttrErrorKey.String(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(options...)

	methodNameValue := ctx.Value(methodNameContextKey)
	methodName, ok := methodNameValue.(string)
	if !ok {
		util.Log(ctx).WithField("value", methodNameValue).Error("invalid methodName context value")
		return
	}

	t.latencyMeasure.Record(ctx,
		float64(elapsed.Milliseconds()),
		metric.WithAttributes(
			AttrStatusKey.String(ErrorCode(err)),
			AttrMethodKey.String(methodName)),
	)
}

func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline exceeded"
	}
	return "err"
}
