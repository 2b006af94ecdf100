package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records outbound call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records an outbound call with duration and error status.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordThrottle records a call rejected before dispatch, with the
	// rejecting guard as reason ("rate_limit", "queue_full", ...).
	RecordThrottle(ctx context.Context, meta CallMeta, reason string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	totalCount    metric.Int64Counter
	errorCount    metric.Int64Counter
	throttleCount metric.Int64Counter
	durationHist  metric.Float64Histogram
}

// NewMetrics creates a Metrics instance recording through the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"api.call.total",
		metric.WithDescription("Total number of outbound API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"api.call.errors",
		metric.WithDescription("Total number of failed outbound API calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	throttleCount, err := meter.Int64Counter(
		"api.call.throttled",
		metric.WithDescription("Calls rejected by a local guard before dispatch"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"api.call.duration_ms",
		metric.WithDescription("Outbound API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		totalCount:    totalCount,
		errorCount:    errorCount,
		throttleCount: throttleCount,
		durationHist:  durationHist,
	}, nil
}

func (m *metricsImpl) callAttrs(meta CallMeta) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("api.operation", meta.Operation),
	}
	if meta.Method != "" {
		attrs = append(attrs, attribute.String("http.request.method", meta.Method))
	}

	return metric.WithAttributes(attrs...)
}

// RecordCall records metrics for one outbound call.
func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := m.callAttrs(meta)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordThrottle records a locally rejected call.
func (m *metricsImpl) RecordThrottle(ctx context.Context, meta CallMeta, reason string) {
	m.throttleCount.Add(ctx, 1,
		m.callAttrs(meta),
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordThrottle(ctx context.Context, meta CallMeta, reason string) {}

// NewNopMetrics returns a Metrics that records nothing.
func NewNopMetrics() Metrics {
	return &noopMetrics{}
}
