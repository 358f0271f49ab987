package eventbus

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func idAttr(id ID) attribute.KeyValue {
	return attribute.String("event_id", id.String())
}

// otelMetrics reports bus activity through an OpenTelemetry meter, grounded
// on the otel.Meter(...) usage pattern the teacher's storage layer uses for
// its own instrumentation.
type otelMetrics struct {
	posted      metric.Int64Counter
	dropped     metric.Int64Counter
	dispatchDur metric.Float64Histogram
	handlerDur  metric.Float64Histogram
}

// NewOtelMetrics builds a Metrics implementation backed by meter. Instrument
// creation errors are swallowed (falling back to a no-op instrument) rather
// than failing bus construction — telemetry must never be load-bearing.
func NewOtelMetrics(meter metric.Meter) Metrics {
	posted, _ := meter.Int64Counter("eventbus.posted",
		metric.WithDescription("events successfully enqueued, by event id"))
	dropped, _ := meter.Int64Counter("eventbus.dropped",
		metric.WithDescription("events dropped due to a full queue, by event id"))
	dispatchDur, _ := meter.Float64Histogram("eventbus.dispatch.duration_ms",
		metric.WithDescription("wall time of a slow Dispatch batch"))
	handlerDur, _ := meter.Float64Histogram("eventbus.handler.duration_ms",
		metric.WithDescription("wall time of a slow subscriber callback"))
	return &otelMetrics{posted: posted, dropped: dropped, dispatchDur: dispatchDur, handlerDur: handlerDur}
}

func (m *otelMetrics) IncPosted(id ID) {
	if m.posted == nil {
		return
	}
	m.posted.Add(context.Background(), 1, metric.WithAttributes(idAttr(id)))
}

func (m *otelMetrics) IncDropped(id ID) {
	if m.dropped == nil {
		return
	}
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(idAttr(id)))
}

func (m *otelMetrics) ObserveDispatchSlow(n int, dur time.Duration) {
	if m.dispatchDur == nil {
		return
	}
	m.dispatchDur.Record(context.Background(), float64(dur.Microseconds())/1000.0)
}

func (m *otelMetrics) ObserveHandlerSlow(id ID, dur time.Duration) {
	if m.handlerDur == nil {
		return
	}
	m.handlerDur.Record(context.Background(), float64(dur.Microseconds())/1000.0,
		metric.WithAttributes(idAttr(id)))
}
