package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricIterationsTotal      = "ladderbot_iterations_total"
	MetricIterationErrorsTotal = "ladderbot_iteration_errors_total"
	MetricIterationDuration    = "ladderbot_iteration_duration_seconds"
	MetricOrdersPlacedTotal    = "ladderbot_orders_placed_total"
	MetricOrdersFilledTotal    = "ladderbot_orders_filled_total"
	MetricOrdersCancelledTotal = "ladderbot_orders_cancelled_total"
	MetricOrdersNotPlacedTotal = "ladderbot_orders_not_placed_total"
	MetricOrdersActive         = "ladderbot_orders_active"
	MetricMidPrice             = "ladderbot_mid_price"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	IterationsTotal      metric.Int64Counter
	IterationErrorsTotal metric.Int64Counter
	IterationDuration    metric.Float64Histogram
	OrdersPlacedTotal    metric.Int64Counter
	OrdersFilledTotal    metric.Int64Counter
	OrdersCancelledTotal metric.Int64Counter
	OrdersNotPlacedTotal metric.Int64Counter
	OrdersActive         metric.Int64ObservableGauge
	MidPrice             metric.Float64ObservableGauge

	// State for observable gauges, keyed by pair
	mu           sync.RWMutex
	activeOrders map[string]int64
	midPrice     map[string]float64
	initialized  bool
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			activeOrders: make(map[string]int64),
			midPrice:     make(map[string]float64),
		}
	})
	return globalMetrics
}

// InitMetrics creates the instruments on the given meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	if m.IterationsTotal, err = meter.Int64Counter(MetricIterationsTotal,
		metric.WithDescription("Total ladder iterations run")); err != nil {
		return err
	}
	if m.IterationErrorsTotal, err = meter.Int64Counter(MetricIterationErrorsTotal,
		metric.WithDescription("Total ladder iterations that failed")); err != nil {
		return err
	}
	if m.IterationDuration, err = meter.Float64Histogram(MetricIterationDuration,
		metric.WithDescription("Ladder iteration duration in seconds")); err != nil {
		return err
	}
	if m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal,
		metric.WithDescription("Total ladder orders placed")); err != nil {
		return err
	}
	if m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal,
		metric.WithDescription("Total ladder orders confirmed filled")); err != nil {
		return err
	}
	if m.OrdersCancelledTotal, err = meter.Int64Counter(MetricOrdersCancelledTotal,
		metric.WithDescription("Total ladder orders cancelled")); err != nil {
		return err
	}
	if m.OrdersNotPlacedTotal, err = meter.Int64Counter(MetricOrdersNotPlacedTotal,
		metric.WithDescription("Total placements refused, labelled by reason")); err != nil {
		return err
	}

	if m.OrdersActive, err = meter.Int64ObservableGauge(MetricOrdersActive,
		metric.WithDescription("Live (non-processed) ladder orders"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for pair, n := range m.activeOrders {
				o.Observe(n, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		})); err != nil {
		return err
	}
	if m.MidPrice, err = meter.Float64ObservableGauge(MetricMidPrice,
		metric.WithDescription("Current ladder mid-price"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for pair, v := range m.midPrice {
				o.Observe(v, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		})); err != nil {
		return err
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// Initialized reports whether instruments have been created
func (m *MetricsHolder) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SetActiveOrders updates the active-orders gauge state for a pair
func (m *MetricsHolder) SetActiveOrders(pair string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeOrders[pair] = n
}

// SetMidPrice updates the mid-price gauge state for a pair
func (m *MetricsHolder) SetMidPrice(pair string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.midPrice[pair] = v
}
