// Package tracing wraps the ambient global otel tracer in the
// teacher's span-naming idiom (internal/domain/agent/react/tracing.go):
// a fixed scope name, dotted span/attribute names, and a small helper
// that marks a span's outcome from an error. SDK and exporter wiring
// are the host process's concern — this package only ever calls
// otel.Tracer against whatever global provider main() installed (or
// the otel no-op default if it installed none).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	scopeTask      = "cortex.task"
	scopeExtension = "cortex.extension"
	scopeCollab    = "cortex.collab"

	SpanTaskRun           = "cortex.task.run"
	SpanExtensionDispatch = "cortex.extension.dispatch"
	SpanCollabBroadcast   = "cortex.collab.broadcast"

	AttrTaskID      = "cortex.task_id"
	AttrTaskLabel   = "cortex.task_label"
	AttrExtensionID = "cortex.extension_id"
	AttrDispatchKind = "cortex.dispatch_kind"
	AttrSessionID   = "cortex.session_id"
	AttrMessageType = "cortex.message_type"
)

// StartTaskSpan opens a span around one Task Engine run.
func StartTaskSpan(ctx context.Context, taskID, label string) (context.Context, trace.Span) {
	return otel.Tracer(scopeTask).Start(ctx, SpanTaskRun, trace.WithAttributes(
		attribute.String(AttrTaskID, taskID),
		attribute.String(AttrTaskLabel, label),
	))
}

// StartExtensionSpan opens a span around one Extension Runtime dispatch.
func StartExtensionSpan(ctx context.Context, extensionID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(scopeExtension).Start(ctx, SpanExtensionDispatch, trace.WithAttributes(
		attribute.String(AttrExtensionID, extensionID),
		attribute.String(AttrDispatchKind, kind),
	))
}

// StartBroadcastSpan opens a span around one collaboration fan-out.
func StartBroadcastSpan(ctx context.Context, sessionID, messageType string) (context.Context, trace.Span) {
	return otel.Tracer(scopeCollab).Start(ctx, SpanCollabBroadcast, trace.WithAttributes(
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrMessageType, messageType),
	))
}

// End marks span's outcome from err (or Ok if nil) and ends it.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
