package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records outcomes of guarded database operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one guarded operation with duration and error
	// status. The attempt count covers the whole operation including retries.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordRetry records a single retry attempt before it runs.
	RecordRetry(ctx context.Context, meta OpMeta, attempt int)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	retryCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance over the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"db.guard.operations",
		metric.WithDescription("Total number of guarded database operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.guard.errors",
		metric.WithDescription("Total number of guarded operations that failed after retries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"db.guard.retries",
		metric.WithDescription("Total number of retry attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"db.guard.duration_ms",
		metric.WithDescription("Guarded operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		retryCount:   retryCount,
		durationHist: durationHist,
	}, nil
}

// RecordOperation records metrics for one guarded operation.
func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(opAttrs(meta)...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordRetry records one retry attempt.
func (m *metricsImpl) RecordRetry(ctx context.Context, meta OpMeta, attempt int) {
	m.retryCount.Add(ctx, 1, metric.WithAttributes(opAttrs(meta)...))
}

func opAttrs(meta OpMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", meta.Operation),
	}
	if meta.Shape != "" {
		attrs = append(attrs, attribute.String("db.shape", meta.Shape))
	}
	if meta.Server != "" {
		attrs = append(attrs, attribute.String("db.server", meta.Server))
	}
	return attrs
}

// nopMetrics is a metrics implementation that does nothing.
type nopMetrics struct{}

// NewNopMetrics returns a Metrics that records nothing.
func NewNopMetrics() Metrics {
	return nopMetrics{}
}

func (nopMetrics) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}

func (nopMetrics) RecordRetry(ctx context.Context, meta OpMeta, attempt int) {}
