// Package telemetry provides OpenTelemetry helpers for lifecycle runs.
//
// Spans are created through the globally registered tracer provider, which
// is a no-op until the host application installs one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans emitted by modrun.
const InstrumentationName = "github.com/bft-labs/modrun"

// Attribute keys.
const (
	AttrModule   = "modrun.module"
	AttrState    = "modrun.state"
	AttrRunID    = "modrun.run_id"
	AttrModules  = "modrun.modules"
	AttrPrevious = "modrun.previous_state"
)

// Span names.
const (
	SpanRunState = "modrun.run_state"
	SpanEnter    = "modrun.enter_state"
	SpanReload   = "modrun.reload_dependencies"
)

// Tracer returns the modrun tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Module returns an attribute for a module name.
func Module(name string) attribute.KeyValue {
	return attribute.String(AttrModule, name)
}

// State returns an attribute for a lifecycle state name.
func State(name string) attribute.KeyValue {
	return attribute.String(AttrState, name)
}

// Previous returns an attribute for the state a module left.
func Previous(name string) attribute.KeyValue {
	return attribute.String(AttrPrevious, name)
}

// RunID returns an attribute for a run identifier.
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Modules returns an attribute for a module count.
func Modules(n int) attribute.KeyValue {
	return attribute.Int(AttrModules, n)
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID of the span in ctx, or "" if there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
