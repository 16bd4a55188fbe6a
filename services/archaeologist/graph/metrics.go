package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph construction.
var (
	tracer = otel.Tracer("archaeologist.graph")
	meter  = otel.Meter("archaeologist.graph")
)

// Metrics for graph builds.
var (
	buildLatency metric.Float64Histogram
	edgesDerived metric.Int64Counter
	callsDropped metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"archaeologist_graph_build_duration_seconds",
			metric.WithDescription("Duration of graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesDerived, err = meter.Int64Counter(
			"archaeologist_graph_edges_total",
			metric.WithDescription("Total relationships derived"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callsDropped, err = meter.Int64Counter(
			"archaeologist_graph_dropped_calls_total",
			metric.WithDescription("Call sites dropped as unattributable or unresolvable"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a completed build.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	buildLatency.Record(ctx, duration.Seconds())
	edgesDerived.Add(ctx, int64(stats.Contains+stats.Defines+stats.Calls))
	callsDropped.Add(ctx, int64(stats.DroppedCalls))
}
