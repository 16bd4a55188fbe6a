package rag

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for question answering.
var (
	tracer = otel.Tracer("archaeologist.rag")
	meter  = otel.Meter("archaeologist.rag")
)

// Metrics for the generate-execute loop.
var (
	queryAttempts metric.Int64Histogram
	queryOutcomes metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryAttempts, err = meter.Int64Histogram(
			"archaeologist_rag_attempts",
			metric.WithDescription("Generate-execute attempts per question"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryOutcomes, err = meter.Int64Counter(
			"archaeologist_rag_queries_total",
			metric.WithDescription("Questions processed by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQueryOutcome records the attempt count and outcome of one question.
func recordQueryOutcome(ctx context.Context, attempts int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	queryAttempts.Record(ctx, int64(attempts), attrs)
	queryOutcomes.Add(ctx, 1, attrs)
}
