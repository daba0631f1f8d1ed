package ladder

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/alert"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/mock"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})                 {}
func (nopLogger) Info(string, ...interface{})                  {}
func (nopLogger) Warn(string, ...interface{})                  {}
func (nopLogger) Error(string, ...interface{})                 {}
func (nopLogger) Fatal(string, ...interface{})                 {}
func (n nopLogger) WithField(string, interface{}) core.ILogger { return n }
func (n nopLogger) WithFields(map[string]interface{}) core.ILogger {
	return n
}

type captureNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (c *captureNotifier) Notify(_ context.Context, title, _ string, _ alert.Level, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.titles)
}

func testConfig(count int) Config {
	return Config{
		Pair:             "BTC/USDT",
		Exchange:         "mock",
		Count:            count,
		PriceStepPercent: 1,
		Amount:           decimal.RequireFromString("0.5"),
		AmountCoin:       "base",
		AmountDeviation:  0,
		PreviousFilledStates: []journal.State{
			journal.StateFilled, journal.StatePartlyFilled,
		},
	}
}

// newTestEngine builds an engine over the mock venue with rates pinned so
// the derived mid is 100, and balances ample for a small grid.
func newTestEngine(t *testing.T, count int) (*Engine, *mock.Exchange, *journal.MemoryStore) {
	t.Helper()

	ex := mock.NewExchange()
	ex.SetRates(core.Rates{
		Bid: decimal.RequireFromString("99.5"),
		Ask: decimal.RequireFromString("100.5"),
	}, nil)
	ex.SetBalance("BTC", decimal.NewFromInt(1000))
	ex.SetBalance("USDT", decimal.NewFromInt(1000000))

	store := journal.NewMemoryStore()
	engine := NewEngine(testConfig(count), ex, store, store, nil, nopLogger{})
	return engine, ex, store
}

func runIteration(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.RunIteration(context.Background()); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}
}

// liveRecords returns live records for one side keyed by rung index.
func liveRecords(t *testing.T, store *journal.MemoryStore, side core.Side) map[int]*journal.OrderRecord {
	t.Helper()
	live, err := store.LiveOrders(context.Background(), journal.PurposeLadder, "BTC/USDT", "mock")
	if err != nil {
		t.Fatalf("LiveOrders failed: %v", err)
	}
	out := make(map[int]*journal.OrderRecord)
	for _, rec := range live {
		if rec.Side == side {
			out[rec.LadderIndex] = rec
		}
	}
	return out
}

// assertPrices verifies that each rung carries the expected price.
func assertPrices(t *testing.T, store *journal.MemoryStore, side core.Side, want []string) {
	t.Helper()
	recs := liveRecords(t, store, side)
	if len(recs) != len(want) {
		t.Fatalf("%s side: expected %d live records, got %d", side, len(want), len(recs))
	}
	for idx, price := range want {
		rec, ok := recs[idx]
		if !ok {
			t.Fatalf("%s side: no live record at index %d", side, idx)
		}
		if got := rec.Price.StringFixed(2); got != price {
			t.Errorf("%s side index %d: expected price %s, got %s", side, idx, price, got)
		}
	}
}

// fillOrder marks the venue order behind a rung as filled.
func fillOrder(t *testing.T, store *journal.MemoryStore, ex *mock.Exchange, side core.Side, idx int) string {
	t.Helper()
	rec, ok := liveRecords(t, store, side)[idx]
	if !ok {
		t.Fatalf("%s side: no record at index %d to fill", side, idx)
	}
	if rec.IsVirtual {
		t.Fatalf("%s side index %d: record is virtual, cannot fill", side, idx)
	}
	ex.SetOrderStatus(rec.ID, core.OrderStatusFilled)
	return rec.ID
}

func loadParams(t *testing.T, store *journal.MemoryStore) *core.LadderParams {
	t.Helper()
	params, err := store.LoadParams(context.Background())
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	return params
}
