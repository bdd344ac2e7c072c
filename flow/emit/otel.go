package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter converts events into OpenTelemetry spans.
//
// Each event becomes one span:
//   - Span name: event.Msg
//   - Attributes: mediagraph.run_id, mediagraph.node_id,
//     mediagraph.status, plus mapped Meta fields
//   - Status: error when event.Meta["error"] is set
//
// Spans are ended immediately; events mark points in time, not
// durations. Dispatch latency travels as the mediagraph.dispatch.latency_ms
// attribute instead.
//
// Usage:
//
//	tracer := otel.Tracer("mediagraph")
//	emitter := emit.NewOTelEmitter(tracer)
//	runner := flow.NewRunner(dispatcher, flow.WithEmitter(emitter))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter backed by the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as a span.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("mediagraph.run_id", event.RunID),
		attribute.String("mediagraph.node_id", event.NodeID),
		attribute.String("mediagraph.status", event.Status),
	)
	o.addMetaAttributes(span, event.Meta)

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// EmitBatch records multiple events as spans under one context. The
// batch span processor handles export batching.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		span.SetAttributes(
			attribute.String("mediagraph.run_id", event.RunID),
			attribute.String("mediagraph.node_id", event.NodeID),
			attribute.String("mediagraph.status", event.Status),
		)
		o.addMetaAttributes(span, event.Meta)
		if errMsg, ok := event.Meta["error"].(string); ok {
			span.SetStatus(codes.Error, errMsg)
			span.RecordError(fmt.Errorf("%s", errMsg))
		}
		span.End()
	}
	return nil
}

// Flush forces export of pending spans. Call before shutdown so
// buffered spans reach the backend.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// addMetaAttributes maps event metadata onto span attributes, renaming
// well-known keys into the mediagraph namespace.
func (o *OTelEmitter) addMetaAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := key
		switch key {
		case "latency_ms":
			attrKey = "mediagraph.dispatch.latency_ms"
		case "attempt":
			attrKey = "mediagraph.dispatch.attempt"
		case "provider":
			attrKey = "mediagraph.dispatch.provider"
		case "model":
			attrKey = "mediagraph.dispatch.model"
		case "reason":
			attrKey = "mediagraph.node.reason"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
