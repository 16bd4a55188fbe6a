package store

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph persistence.
var (
	tracer = otel.Tracer("archaeologist.store")
	meter  = otel.Meter("archaeologist.store")
)

// Metrics for store operations.
var (
	writeLatency metric.Float64Histogram
	writeTotal   metric.Int64Counter
	queryLatency metric.Float64Histogram
	queryTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		writeLatency, err = meter.Float64Histogram(
			"archaeologist_store_write_duration_seconds",
			metric.WithDescription("Duration of graph write batches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		writeTotal, err = meter.Int64Counter(
			"archaeologist_store_writes_total",
			metric.WithDescription("Total entities and relationships written"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryLatency, err = meter.Float64Histogram(
			"archaeologist_store_query_duration_seconds",
			metric.WithDescription("Duration of graph queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"archaeologist_store_queries_total",
			metric.WithDescription("Total graph queries executed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordWriteMetrics records metrics for a write batch.
func recordWriteMetrics(ctx context.Context, kind string, count int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(attribute.String("kind", kind))
	writeLatency.Record(ctx, duration.Seconds(), attrs)
	writeTotal.Add(ctx, int64(count), attrs)
}

// recordQueryMetrics records metrics for a query execution.
func recordQueryMetrics(ctx context.Context, success bool, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryTotal.Add(ctx, 1, attrs)
}
