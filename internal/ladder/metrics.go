package ladder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/telemetry"
)

// metricsRecorder is a nil-safe facade over the global instruments, so engine
// code can record unconditionally even before telemetry is initialized.
type metricsRecorder struct {
	h *telemetry.MetricsHolder
}

func newMetricsRecorder() metricsRecorder {
	return metricsRecorder{h: telemetry.GetGlobalMetrics()}
}

func (m metricsRecorder) iteration(ctx context.Context, pair string, d time.Duration, failed bool) {
	if !m.h.Initialized() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("pair", pair))
	m.h.IterationsTotal.Add(ctx, 1, attrs)
	m.h.IterationDuration.Record(ctx, d.Seconds(), attrs)
	if failed {
		m.h.IterationErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m metricsRecorder) placed(ctx context.Context, pair string) {
	if !m.h.Initialized() {
		return
	}
	m.h.OrdersPlacedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
}

func (m metricsRecorder) filled(ctx context.Context, pair string) {
	if !m.h.Initialized() {
		return
	}
	m.h.OrdersFilledTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
}

func (m metricsRecorder) cancelled(ctx context.Context, pair string) {
	if !m.h.Initialized() {
		return
	}
	m.h.OrdersCancelledTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
}

func (m metricsRecorder) notPlaced(ctx context.Context, pair, reason string) {
	if !m.h.Initialized() {
		return
	}
	m.h.OrdersNotPlacedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pair", pair),
		attribute.String("reason", reason),
	))
}

func (m metricsRecorder) gauges(pair string, active int64, mid float64) {
	m.h.SetActiveOrders(pair, active)
	m.h.SetMidPrice(pair, mid)
}
