package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span as failed and records the error together with any
// attributes describing where it happened.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetNodeError marks a node span as failed, tagging the failing node so
// traces can be filtered per node.
func SetNodeError(span trace.Span, nodeID, nodeType string, err error) {
	SetError(span, err,
		attribute.String(NodeIDKey, nodeID),
		attribute.String(NodeTypeKey, nodeType),
	)
}
