package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// turnMetrics publishes turn counters and stage latencies. Instrument
// creation failures degrade to no-ops rather than blocking startup.
type turnMetrics struct {
	turns        metric.Int64Counter
	stageLatency metric.Float64Histogram
}

func newTurnMetrics(log *slog.Logger) *turnMetrics {
	meter := otel.Meter("github.com/habibuoy/VirtualAIAssistant/orchestrator")
	m := &turnMetrics{}

	var err error
	m.turns, err = meter.Int64Counter("assistant.turns",
		metric.WithDescription("Conversation turns by outcome"))
	if err != nil {
		log.Warn("failed to create turn counter", slog.String("error", err.Error()))
	}
	m.stageLatency, err = meter.Float64Histogram("assistant.turn.stage.duration",
		metric.WithDescription("Per-stage turn latency"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Warn("failed to create stage histogram", slog.String("error", err.Error()))
	}
	return m
}

func (m *turnMetrics) countTurn(ctx context.Context, outcome string) {
	if m.turns == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *turnMetrics) observeStage(ctx context.Context, stage string, start time.Time) {
	if m.stageLatency == nil {
		return
	}
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	m.stageLatency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("stage", stage)))
}
