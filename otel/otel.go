// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Package colextotel provides OpenTelemetry instrumentation for plugin
// invocation. It implements the [colext.InvokeHook] interface to add
// distributed tracing and metrics around every plugin call.
//
// Usage:
//
//	reg := colext.NewRegistry()
//	colextotel.Instrument(reg, colextotel.DefaultConfig())
package colextotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colext/colext"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "colext"

// OtelConfig configures OpenTelemetry instrumentation for a registry.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed
	// invocations. Default true.
	RecordExceptions bool
	// EngineName is the plugin.engine attribute value. Defaults to "colext".
	EngineName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with sensible defaults.
// TracerProvider and MeterProvider are resolved from the global OTel SDK
// at instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// Instrument attaches OpenTelemetry instrumentation to a registry. The
// hook is installed via [colext.Registry.SetInvokeHook].
func Instrument(reg *colext.Registry, cfg OtelConfig) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.EngineName == "" {
		cfg.EngineName = "colext"
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.invokeCounter, _ = meter.Int64Counter("plugin.invocations",
			metric.WithUnit("{invocation}"),
			metric.WithDescription("Number of plugin invocations"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("plugin.invocation.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of plugin invocations"),
		)
	}

	reg.SetInvokeHook(hook)
}

// otelHook implements colext.InvokeHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               OtelConfig
	tracer            trace.Tracer
	invokeCounter     metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnInvokeStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnInvokeStart starts a span for one plugin invocation.
func (h *otelHook) OnInvokeStart(ctx context.Context, info colext.InvokeInfo) (context.Context, colext.HookToken) {
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	spanName := fmt.Sprintf("colext/%s", info.Symbol)

	attrs := []attribute.KeyValue{
		attribute.String("plugin.engine", h.cfg.EngineName),
		attribute.String("plugin.location", info.Location),
		attribute.String("plugin.symbol", info.Symbol),
		attribute.String("plugin.invocation_id", info.InvocationID),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnInvokeEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnInvokeEnd(ctx context.Context, token colext.HookToken, info colext.InvokeInfo, stats *colext.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("plugin.engine", h.cfg.EngineName),
			attribute.String("plugin.symbol", info.Symbol),
			attribute.String("status", status),
		)
		if h.invokeCounter != nil {
			h.invokeCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("plugin.input_arrays", stats.InputArrays),
				attribute.Int64("plugin.input_rows", stats.InputRows),
				attribute.Int64("plugin.input_bytes", stats.InputBytes),
				attribute.Int64("plugin.output_rows", stats.OutputRows),
				attribute.Int64("plugin.output_bytes", stats.OutputBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			errType := fmt.Sprintf("%T", err)
			var kinded *colext.Error
			if errors.As(err, &kinded) {
				errType = kinded.Kind.String()
			}
			st.span.SetAttributes(attribute.String("plugin.error_type", errType))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}

		st.span.End()
	}
}
