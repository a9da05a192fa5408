package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanProcessOrder = "process_order"
	SpanCancelOrder  = "cancel_order"
	SpanPublishDone  = "publish_done"

	// Attribute keys
	AttributeOrderID           = "order.id"
	AttributeOrderSide         = "order.side"
	AttributeOrderQuantity     = "order.quantity"
	AttributeOrderPrice        = "order.price"
	AttributeOrderStored       = "order.stored"
	AttributeOrderCanceled     = "order.canceled"
	AttributeExecutedQuantity  = "order.executed_quantity"
	AttributeRemainingQuantity = "order.remaining_quantity"
	AttributeTradeCount        = "trade.count"
	AttributeMessageKind       = "message.kind"
	AttributeSender            = "message.sender"
)

// StartOrderSpan starts a new span for order processing
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer

	switch name {
	case SpanPublishDone:
		tracer = GetPublisherTracer()
	default:
		tracer = GetMatchingEngineTracer()
	}

	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
