package ladder

import (
	"context"
	"errors"
	"testing"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/mock"
)

func testRecord(id string, state journal.State, virtual bool) *journal.OrderRecord {
	return &journal.OrderRecord{
		ID:          id,
		Purpose:     journal.PurposeLadder,
		Pair:        "BTC/USDT",
		Exchange:    "mock",
		Side:        core.SideBuy,
		LadderState: state,
		IsVirtual:   virtual,
	}
}

func newTestReconciler(ex *mock.Exchange) *Reconciler {
	return NewReconciler(ex, []journal.State{journal.StateFilled, journal.StatePartlyFilled}, nopLogger{})
}

func TestClassifyVirtualRecordsUntouched(t *testing.T) {
	r := newTestReconciler(mock.NewExchange())

	rec := testRecord("v1", journal.StateNotPlaced, true)
	if got := r.Classify(context.Background(), rec, nil, journal.StateUndefined); got != journal.StateNotPlaced {
		t.Errorf("expected Not placed, got %s", got)
	}
}

func TestClassifyFromOpenListing(t *testing.T) {
	r := newTestReconciler(mock.NewExchange())

	cases := []struct {
		status core.OrderStatus
		want   journal.State
	}{
		{core.OrderStatusNew, journal.StateOpen},
		{core.OrderStatusPartFilled, journal.StatePartlyFilled},
		{core.OrderStatusFilled, journal.StateFilled},
		{core.OrderStatusCancelled, journal.StateCancelled},
	}
	for _, tc := range cases {
		rec := testRecord("o1", journal.StateOpen, false)
		open := map[string]*core.Order{"o1": {OrderID: "o1", Status: tc.status}}
		if got := r.Classify(context.Background(), rec, open, journal.StateUndefined); got != tc.want {
			t.Errorf("listing status %s: expected %s, got %s", tc.status, tc.want, got)
		}
	}
}

func TestClassifyAbsentConfirmedByDetails(t *testing.T) {
	ex := mock.NewExchange()
	r := newTestReconciler(ex)

	res, err := ex.PlaceOrder(context.Background(), &core.PlaceOrderRequest{
		Pair: "BTC/USDT", Side: core.SideBuy, Limit: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	ex.SetOrderStatus(res.OrderID, core.OrderStatusFilled)

	rec := testRecord(res.OrderID, journal.StateOpen, false)
	if got := r.Classify(context.Background(), rec, nil, journal.StateUndefined); got != journal.StateFilled {
		t.Errorf("expected Filled, got %s", got)
	}
}

func TestClassifyAbsentCancelledByDetails(t *testing.T) {
	ex := mock.NewExchange()
	r := newTestReconciler(ex)

	res, _ := ex.PlaceOrder(context.Background(), &core.PlaceOrderRequest{
		Pair: "BTC/USDT", Side: core.SideBuy, Limit: true,
	})
	ex.SetOrderStatus(res.OrderID, core.OrderStatusCancelled)

	rec := testRecord(res.OrderID, journal.StateOpen, false)
	if got := r.Classify(context.Background(), rec, nil, journal.StateUndefined); got != journal.StateCancelled {
		t.Errorf("expected Cancelled, got %s", got)
	}
}

func TestClassifyAbsentFallsBackToHeuristic(t *testing.T) {
	ex := mock.NewExchange()
	ex.SetFeatures(core.Features{HasOrderDetails: false})
	r := newTestReconciler(ex)

	rec := testRecord("gone", journal.StateOpen, false)

	if got := r.Classify(context.Background(), rec, nil, journal.StateFilled); got != journal.StateFilled {
		t.Errorf("previous rung Filled: expected Filled, got %s", got)
	}
	if got := r.Classify(context.Background(), rec, nil, journal.StateOpen); got != journal.StateMissed {
		t.Errorf("previous rung Open: expected Missed, got %s", got)
	}
	if got := r.Classify(context.Background(), rec, nil, journal.StateUndefined); got != journal.StateMissed {
		t.Errorf("no previous rung: expected Missed, got %s", got)
	}
}

func TestClassifyHeuristicWhenDetailsFail(t *testing.T) {
	ex := mock.NewExchange()
	ex.SetDetailsError(errors.New("venue down"))
	r := newTestReconciler(ex)

	rec := testRecord("gone", journal.StateOpen, false)
	if got := r.Classify(context.Background(), rec, nil, journal.StatePartlyFilled); got != journal.StateFilled {
		t.Errorf("expected Filled via whitelist, got %s", got)
	}
}

func TestClassifyDemotesUnconfirmedLocalFill(t *testing.T) {
	ex := mock.NewExchange()
	r := newTestReconciler(ex)

	res, _ := ex.PlaceOrder(context.Background(), &core.PlaceOrderRequest{
		Pair: "BTC/USDT", Side: core.SideBuy, Limit: true,
	})

	// The venue says the order still rests; the local Filled claim loses.
	rec := testRecord(res.OrderID, journal.StateFilled, false)
	open := map[string]*core.Order{res.OrderID: {OrderID: res.OrderID, Status: core.OrderStatusNew}}
	if got := r.Classify(context.Background(), rec, open, journal.StateUndefined); got != journal.StateMissed {
		t.Errorf("expected Missed, got %s", got)
	}

	// The venue confirms the fill; the claim stands.
	ex.SetOrderStatus(res.OrderID, core.OrderStatusFilled)
	if got := r.Classify(context.Background(), rec, nil, journal.StateUndefined); got != journal.StateFilled {
		t.Errorf("expected Filled, got %s", got)
	}
}

func TestClassifyToBeRemovedStaysPut(t *testing.T) {
	r := newTestReconciler(mock.NewExchange())

	rec := testRecord("tbr", journal.StateToBeRemoved, false)
	open := map[string]*core.Order{"tbr": {OrderID: "tbr", Status: core.OrderStatusNew}}
	if got := r.Classify(context.Background(), rec, open, journal.StateUndefined); got != journal.StateToBeRemoved {
		t.Errorf("listed: expected To be removed, got %s", got)
	}
	if got := r.Classify(context.Background(), rec, nil, journal.StateUndefined); got != journal.StateToBeRemoved {
		t.Errorf("absent: expected To be removed, got %s", got)
	}
}
