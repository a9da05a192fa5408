package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	orderBookMetrics     *OrderBookMetrics
	orderBookMetricsOnce sync.Once
)

// OrderBookMetrics holds metrics for order book operations
type OrderBookMetrics struct {
	submittedTotal metric.Int64Counter
	rejectedTotal  metric.Int64Counter
	tradesTotal    metric.Int64Counter
	tradedQuantity metric.Int64Counter
	cancelsTotal   metric.Int64Counter
	submitLatency  metric.Float64Histogram
}

// NewOrderBookMetrics creates the order book instruments on meter
func NewOrderBookMetrics(meter metric.Meter) (*OrderBookMetrics, error) {
	submittedTotal, err := meter.Int64Counter(
		"orderbook.orders.submitted",
		metric.WithDescription("Total number of orders accepted by the book"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	rejectedTotal, err := meter.Int64Counter(
		"orderbook.orders.rejected",
		metric.WithDescription("Total number of orders rejected as invalid"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	tradesTotal, err := meter.Int64Counter(
		"orderbook.trades.total",
		metric.WithDescription("Total number of trades produced"),
		metric.WithUnit("{trade}"),
	)
	if err != nil {
		return nil, err
	}

	tradedQuantity, err := meter.Int64Counter(
		"orderbook.trades.quantity",
		metric.WithDescription("Total quantity matched"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	cancelsTotal, err := meter.Int64Counter(
		"orderbook.cancels.total",
		metric.WithDescription("Total number of cancel requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	submitLatency, err := meter.Float64Histogram(
		"orderbook.submit.duration",
		metric.WithDescription("Time spent matching one submission"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &OrderBookMetrics{
		submittedTotal: submittedTotal,
		rejectedTotal:  rejectedTotal,
		tradesTotal:    tradesTotal,
		tradedQuantity: tradedQuantity,
		cancelsTotal:   cancelsTotal,
		submitLatency:  submitLatency,
	}, nil
}

// GetOrderBookMetrics returns the OrderBookMetrics singleton built on the
// configured meter provider. It returns an inert value if the instruments
// cannot be created.
func GetOrderBookMetrics() *OrderBookMetrics {
	orderBookMetricsOnce.Do(func() {
		m, err := NewOrderBookMetrics(GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			orderBookMetrics = &OrderBookMetrics{}
			return
		}
		orderBookMetrics = m
	})
	return orderBookMetrics
}

// RecordSubmit records one accepted submission
func (m *OrderBookMetrics) RecordSubmit(ctx context.Context, trades int, executed uint32, stored bool, elapsed time.Duration) {
	if m == nil || m.submittedTotal == nil {
		return
	}

	m.submittedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("order.stored", stored)))
	if trades > 0 {
		m.tradesTotal.Add(ctx, int64(trades))
		m.tradedQuantity.Add(ctx, int64(executed))
	}
	m.submitLatency.Record(ctx, elapsed.Seconds())
}

// RecordReject records a submission refused by validation
func (m *OrderBookMetrics) RecordReject(ctx context.Context, reason string) {
	if m == nil || m.rejectedTotal == nil {
		return
	}
	m.rejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordCancel records a cancel request and whether it removed an order
func (m *OrderBookMetrics) RecordCancel(ctx context.Context, canceled bool) {
	if m == nil || m.cancelsTotal == nil {
		return
	}
	m.cancelsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("order.canceled", canceled)))
}
