package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for entity extraction.
var (
	tracer = otel.Tracer("archaeologist.ast")
	meter  = otel.Meter("archaeologist.ast")
)

// Metrics for parse operations.
var (
	parseLatency      metric.Float64Histogram
	parseTotal        metric.Int64Counter
	entitiesExtracted metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"archaeologist_parse_duration_seconds",
			metric.WithDescription("Duration of entity extraction per file"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"archaeologist_parse_total",
			metric.WithDescription("Total number of parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		entitiesExtracted, err = meter.Int64Histogram(
			"archaeologist_entities_extracted",
			metric.WithDescription("Number of entities extracted per parse"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records metrics for a parse operation.
//
// Parameters:
//   - ctx: Context for metric recording
//   - language: Language being parsed (e.g., "python")
//   - duration: How long the parse took
//   - entityCount: Number of entities extracted
//   - success: Whether the parse succeeded
func recordParseMetrics(ctx context.Context, language string, duration time.Duration, entityCount int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)

	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
	if success {
		entitiesExtracted.Record(ctx, int64(entityCount), attrs)
	}
}
