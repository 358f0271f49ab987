package corelog

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func levelAttr(l Level) attribute.KeyValue {
	return attribute.String("level", l.String())
}

// MetricsSink is a Sink that reports per-level entry counts through an
// OpenTelemetry meter, grounded on the same otel.Meter(...) instrument
// pattern used by eventbus's otelMetrics.
type MetricsSink struct {
	entries metric.Int64Counter
}

// NewMetricsSink builds a MetricsSink backed by meter. Instrument creation
// errors are swallowed — telemetry must never be load-bearing.
func NewMetricsSink(meter metric.Meter) *MetricsSink {
	entries, _ := meter.Int64Counter("corelog.entries",
		metric.WithDescription("log entries dispatched, by level"))
	return &MetricsSink{entries: entries}
}

func (m *MetricsSink) Write(e Entry) {
	if m.entries == nil {
		return
	}
	m.entries.Add(context.Background(), 1, metric.WithAttributes(levelAttr(e.Level)))
}

// DroppedCounter reports queue-overflow drops observed by a Hub. It is kept
// separate from MetricsSink because drops happen on the producer side,
// before an Entry ever reaches a sink.
type DroppedCounter struct {
	dropped metric.Int64Counter
}

// NewDroppedCounter builds a DroppedCounter backed by meter.
func NewDroppedCounter(meter metric.Meter) *DroppedCounter {
	dropped, _ := meter.Int64Counter("corelog.dropped",
		metric.WithDescription("log entries dropped due to a full queue"))
	return &DroppedCounter{dropped: dropped}
}

func (d *DroppedCounter) Inc() {
	if d.dropped == nil {
		return
	}
	d.dropped.Add(context.Background(), 1)
}
