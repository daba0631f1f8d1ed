package ladder

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
)

func TestInitialBuildFromRates(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)

	runIteration(t, engine)

	assertPrices(t, store, core.SideBuy, []string{"99.00", "98.01", "97.03", "96.06"})
	assertPrices(t, store, core.SideSell, []string{"101.00", "102.01", "103.03", "104.06"})

	if got := len(ex.PlacedRequests()); got != 8 {
		t.Errorf("expected 8 placements, got %d", got)
	}
	for _, rec := range liveRecords(t, store, core.SideBuy) {
		if rec.IsVirtual {
			t.Errorf("buy index %d still virtual after placement", rec.LadderIndex)
		}
		if rec.LadderState != journal.StateOpen {
			t.Errorf("buy index %d: expected Open, got %s", rec.LadderIndex, rec.LadderState)
		}
		if !rec.Coin1Amount.Equal(decimal.RequireFromString("0.5")) {
			t.Errorf("buy index %d: expected amount 0.5, got %s", rec.LadderIndex, rec.Coin1Amount)
		}
		if rec.LadderPreviousOrderID == "" {
			t.Errorf("buy index %d: surrogate id not preserved", rec.LadderIndex)
		}
	}

	params := loadParams(t, store)
	if got := params.MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("expected persisted mid 100.00, got %s", got)
	}
	if params.MidPriceType != "Rates" {
		t.Errorf("expected mid type Rates, got %q", params.MidPriceType)
	}
}

func TestBuyFillShiftsGridDown(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	filledID := fillOrder(t, store, ex, core.SideBuy, 0)

	// Fill detection, cross flagging, renumbering, mid move.
	runIteration(t, engine)

	params := loadParams(t, store)
	if got := params.MidPrice.StringFixed(2); got != "99.00" {
		t.Errorf("expected mid 99.00 after buy fill, got %s", got)
	}
	if params.MidPriceType != "Shifted" {
		t.Errorf("expected mid type Shifted, got %q", params.MidPriceType)
	}

	// Cross purge and refill of the freed rungs.
	runIteration(t, engine)

	assertPrices(t, store, core.SideBuy, []string{"98.01", "97.03", "96.06", "95.10"})
	assertPrices(t, store, core.SideSell, []string{"99.99", "101.00", "102.01", "103.03"})

	filled := store.Get(filledID)
	if filled == nil || !filled.IsExecuted || !filled.IsProcessed {
		t.Error("filled order not retired as executed and processed")
	}
}

func TestSimultaneousFillsRestoreGrid(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	fillOrder(t, store, ex, core.SideBuy, 0)
	fillOrder(t, store, ex, core.SideSell, 0)

	runIteration(t, engine)

	// Equal fills on both sides cancel out: no net renumbering, mid stays.
	params := loadParams(t, store)
	if got := params.MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("expected mid to stay at 100.00, got %s", got)
	}

	runIteration(t, engine)

	assertPrices(t, store, core.SideBuy, []string{"99.00", "98.01", "97.03", "96.06"})
	assertPrices(t, store, core.SideSell, []string{"101.00", "102.01", "103.03", "104.06"})
}

func TestCrossOrderCarriesProvenance(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	filledID := fillOrder(t, store, ex, core.SideBuy, 0)
	runIteration(t, engine)

	// The sell rung opposite the fill (index 3) was flagged and renumbered
	// out of range; it is retired on the next purge.
	var cross *journal.OrderRecord
	for _, rec := range store.All() {
		if rec.Side == core.SideSell && rec.Cross != nil {
			cross = rec
		}
	}
	if cross == nil {
		t.Fatal("no sell record carries cross provenance")
	}
	if cross.Cross.OrderID != filledID {
		t.Errorf("cross provenance points at %s, expected %s", cross.Cross.OrderID, filledID)
	}
	if cross.Cross.Index != 0 || cross.Cross.Type != core.SideBuy {
		t.Errorf("cross provenance wrong: index %d side %s", cross.Cross.Index, cross.Cross.Type)
	}

	runIteration(t, engine)
	retired := store.Get(cross.ID)
	if retired == nil || retired.LadderState != journal.StateRemoved || !retired.IsCancelled {
		t.Error("cross order not removed on the following purge")
	}
}

func TestUnconfirmedFillDemotedAndReplaced(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	// Journal claims the rung filled, but the venue still shows it resting.
	rec := liveRecords(t, store, core.SideBuy)[0]
	staleID := rec.ID
	rec.SetState(journal.StateFilled, "")
	if err := store.Update(context.Background(), rec, false); err != nil {
		t.Fatal(err)
	}

	runIteration(t, engine)

	var sawCancel bool
	for _, id := range ex.CancelledIDs() {
		if id == staleID {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Error("stale order was not cancelled before re-placing")
	}

	replacement := liveRecords(t, store, core.SideBuy)[0]
	if replacement.ID == staleID {
		t.Fatal("rung still holds the stale order")
	}
	if replacement.LadderState != journal.StateOpen || replacement.Price.StringFixed(2) != "99.00" {
		t.Errorf("replacement wrong: state %s price %s", replacement.LadderState, replacement.Price)
	}

	stale := store.Get(staleID)
	if stale == nil || !stale.IsProcessed || stale.LadderReplacedByOrderID != replacement.ID {
		t.Error("stale record not superseded")
	}
	if stale.LadderState != journal.StateMissed {
		t.Errorf("stale record: expected Missed, got %s", stale.LadderState)
	}

	// No fills means no renumbering and no mid move.
	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("mid moved without a confirmed fill: %s", got)
	}
}

func TestHeuristicConfirmsFillWhenPreviousRungFilled(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	ex.SetFeatures(core.Features{OpenOrdersCacheSec: 1, HasOrderDetails: false})
	runIteration(t, engine)

	// Rung 0 partially fills and the state persists, then rung 1 vanishes
	// from the listing: with no per-order lookup, the whitelist accepts
	// rung 1 as filled.
	rec0 := liveRecords(t, store, core.SideBuy)[0]
	ex.SetOrderStatus(rec0.ID, core.OrderStatusPartFilled)
	runIteration(t, engine)

	rec1 := liveRecords(t, store, core.SideBuy)[1]
	ex.RemoveOrder(rec1.ID)

	runIteration(t, engine)

	gone := store.Get(rec1.ID)
	if gone == nil || gone.LadderState != journal.StateFilled || !gone.IsExecuted {
		t.Error("rung 1 not confirmed filled by the heuristic")
	}
	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "98.01" {
		t.Errorf("expected mid at rung 1 price 98.01, got %s", got)
	}
}

func TestHeuristicDemotesToMissedWhenPreviousRungOpen(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	ex.SetFeatures(core.Features{OpenOrdersCacheSec: 1, HasOrderDetails: false})
	runIteration(t, engine)

	// Rung 1 vanished but rung 0 rests untouched: the whitelist rejects the
	// fill and the rung is re-created.
	rec1 := liveRecords(t, store, core.SideBuy)[1]
	ex.RemoveOrder(rec1.ID)

	runIteration(t, engine)

	demoted := store.Get(rec1.ID)
	if demoted == nil || demoted.LadderState != journal.StateMissed {
		t.Fatalf("expected Missed, got %v", demoted)
	}
	if demoted.IsExecuted {
		t.Error("missed order must not count as executed")
	}

	replacement := liveRecords(t, store, core.SideBuy)[1]
	if replacement.ID == rec1.ID || replacement.LadderState != journal.StateOpen {
		t.Error("rung 1 was not re-placed")
	}
	if got := replacement.Price.StringFixed(2); got != "98.01" {
		t.Errorf("replacement price %s, expected 98.01", got)
	}
	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("mid moved on a missed order: %s", got)
	}
}

func TestInsufficientQuoteBalanceSuspendsBuySide(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	notifier := &captureNotifier{}
	engine.notifier = notifier
	ex.SetBalance("USDT", decimal.Zero)

	runIteration(t, engine)

	// Sells went out, buys persisted as Not placed with their target prices.
	assertPrices(t, store, core.SideSell, []string{"101.00", "102.01", "103.03", "104.06"})
	assertPrices(t, store, core.SideBuy, []string{"99.00", "98.01", "97.03", "96.06"})
	for idx, rec := range liveRecords(t, store, core.SideBuy) {
		if !rec.IsVirtual || rec.LadderState != journal.StateNotPlaced {
			t.Errorf("buy index %d: expected virtual Not placed, got %s", idx, rec.LadderState)
		}
		if rec.LadderNotPlacedReason != ReasonNotEnoughBalance {
			t.Errorf("buy index %d: reason %q", idx, rec.LadderNotPlacedReason)
		}
	}
	if got := len(ex.PlacedRequests()); got != 4 {
		t.Errorf("expected 4 placements (sell side only), got %d", got)
	}
	// Rung 0 triggers the alert; the cooldown suppresses the rest.
	if notifier.count() != 1 {
		t.Errorf("expected exactly 1 balance alert, got %d", notifier.count())
	}

	// Funding arrives: the same virtual records are promoted in place.
	virtuals := liveRecords(t, store, core.SideBuy)
	ex.SetBalance("USDT", decimal.NewFromInt(1000000))
	runIteration(t, engine)

	for idx, rec := range liveRecords(t, store, core.SideBuy) {
		if rec.LadderState != journal.StateOpen || rec.IsVirtual {
			t.Errorf("buy index %d not placed after funding: %s", idx, rec.LadderState)
		}
		if rec.LadderPreviousOrderID != virtuals[idx].ID {
			t.Errorf("buy index %d lost its surrogate chain", idx)
		}
	}
}

func TestRatesUnavailableSuspendsPlacement(t *testing.T) {
	engine, ex, store := newTestEngine(t, 2)
	notifier := &captureNotifier{}
	engine.notifier = notifier
	ex.SetRates(core.Rates{}, nil)

	runIteration(t, engine)

	if got := len(ex.PlacedRequests()); got != 0 {
		t.Errorf("expected no placements without a mid, got %d", got)
	}
	for _, side := range []core.Side{core.SideBuy, core.SideSell} {
		recs := liveRecords(t, store, side)
		if len(recs) != 2 {
			t.Fatalf("%s side: expected 2 records, got %d", side, len(recs))
		}
		for idx, rec := range recs {
			if rec.LadderState != journal.StateNotPlaced || rec.LadderNotPlacedReason != ReasonRatesUnavailable {
				t.Errorf("%s index %d: state %s reason %q", side, idx, rec.LadderState, rec.LadderNotPlacedReason)
			}
		}
	}
	if notifier.count() != 1 {
		t.Errorf("expected 1 rates alert, got %d", notifier.count())
	}
	if loadParams(t, store).MidPrice.IsPositive() {
		t.Error("mid must not persist while rates are unavailable")
	}

	// Rates recover: the virtual records are priced and placed.
	ex.SetRates(core.Rates{
		Bid: decimal.RequireFromString("99.5"),
		Ask: decimal.RequireFromString("100.5"),
	}, nil)
	runIteration(t, engine)

	assertPrices(t, store, core.SideBuy, []string{"99.00", "98.01"})
	assertPrices(t, store, core.SideSell, []string{"101.00", "102.01"})
}

func TestCancelResidueBlocksPlacement(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	rec := liveRecords(t, store, core.SideSell)[3]
	rec.SetState(journal.StateToBeRemoved, "")
	if err := store.Update(context.Background(), rec, false); err != nil {
		t.Fatal(err)
	}
	ex.SetCancelError(errors.New("venue unavailable"))
	placedBefore := len(ex.PlacedRequests())

	runIteration(t, engine)

	// The flagged order survived and nothing else was touched.
	still := store.Get(rec.ID)
	if still.IsProcessed || still.LadderState != journal.StateToBeRemoved {
		t.Error("flagged order must stay pending while the cancel fails")
	}
	if got := len(ex.PlacedRequests()); got != placedBefore {
		t.Errorf("placements ran despite removal residue: %d -> %d", placedBefore, got)
	}

	ex.SetCancelError(nil)
	runIteration(t, engine)

	removed := store.Get(rec.ID)
	if removed.LadderState != journal.StateRemoved || !removed.IsProcessed {
		t.Error("flagged order not removed once the venue recovered")
	}
	// The freed rung is rebuilt from its neighbor.
	assertPrices(t, store, core.SideSell, []string{"101.00", "102.01", "103.03", "104.06"})
}

func TestReInitRebuildsFromScratch(t *testing.T) {
	engine, _, store := newTestEngine(t, 4)
	runIteration(t, engine)

	params := loadParams(t, store)
	params.ReInit = true
	if err := store.SaveParams(context.Background(), params); err != nil {
		t.Fatal(err)
	}

	runIteration(t, engine)

	live, err := store.LiveOrders(context.Background(), journal.PurposeLadder, "BTC/USDT", "mock")
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Fatalf("expected empty live set after re-init, got %d", len(live))
	}
	params = loadParams(t, store)
	if params.ReInit {
		t.Error("re-init flag not cleared")
	}
	if params.MidPrice.IsPositive() {
		t.Error("mid must be cleared by re-init")
	}

	runIteration(t, engine)
	assertPrices(t, store, core.SideBuy, []string{"99.00", "98.01", "97.03", "96.06"})
	assertPrices(t, store, core.SideSell, []string{"101.00", "102.01", "103.03", "104.06"})
}

func TestPartialFillRestsInPlace(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	rec := liveRecords(t, store, core.SideBuy)[0]
	ex.SetOrderStatus(rec.ID, core.OrderStatusPartFilled)

	runIteration(t, engine)

	updated := store.Get(rec.ID)
	if updated.LadderState != journal.StatePartlyFilled {
		t.Errorf("expected Partly filled, got %s", updated.LadderState)
	}
	if updated.IsProcessed || updated.IsExecuted {
		t.Error("partly filled order must stay live")
	}
	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("mid moved on a partial fill: %s", got)
	}
}

func TestListingOutageStillVerifiesLocalFills(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	// The journal says rung 0 filled, but the order still rests on the venue
	// and the open-orders listing is down. The per-order lookup must catch
	// the stale fill before it retires the rung and moves the mid.
	rec := liveRecords(t, store, core.SideBuy)[0]
	staleID := rec.ID
	rec.SetState(journal.StateFilled, "")
	if err := store.Update(context.Background(), rec, false); err != nil {
		t.Fatal(err)
	}
	ex.SetOpenOrdersError(errors.New("listing down"))

	runIteration(t, engine)

	stale := store.Get(staleID)
	if stale.LadderState != journal.StateMissed {
		t.Fatalf("expected Missed, got %s", stale.LadderState)
	}
	if stale.IsExecuted {
		t.Error("unverified fill counted as executed")
	}
	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("mid moved without venue confirmation: %s", got)
	}

	replacement := liveRecords(t, store, core.SideBuy)[0]
	if replacement.ID == staleID || replacement.LadderState != journal.StateOpen {
		t.Fatal("rung 0 was not re-placed after the demotion")
	}

	// A fill the venue does confirm through the lookup is processed even
	// while the listing stays down.
	ex.SetOrderStatus(replacement.ID, core.OrderStatusFilled)
	replacement.SetState(journal.StateFilled, "")
	if err := store.Update(context.Background(), replacement, false); err != nil {
		t.Fatal(err)
	}

	runIteration(t, engine)

	filled := store.Get(replacement.ID)
	if !filled.IsExecuted || !filled.IsProcessed {
		t.Error("confirmed fill not retired as executed and processed")
	}
	params := loadParams(t, store)
	if got := params.MidPrice.StringFixed(2); got != "99.00" {
		t.Errorf("expected mid 99.00 after the confirmed fill, got %s", got)
	}
	if params.MidPriceType != "Shifted" {
		t.Errorf("expected mid type Shifted, got %q", params.MidPriceType)
	}
}

func TestSingleRungGridRebuildsAfterFill(t *testing.T) {
	engine, ex, store := newTestEngine(t, 1)
	runIteration(t, engine)

	assertPrices(t, store, core.SideBuy, []string{"99.00"})
	assertPrices(t, store, core.SideSell, []string{"101.00"})

	sellID := liveRecords(t, store, core.SideSell)[0].ID
	filledID := fillOrder(t, store, ex, core.SideBuy, 0)

	// With one rung per side the fill's cross order is the only sell.
	runIteration(t, engine)

	params := loadParams(t, store)
	if got := params.MidPrice.StringFixed(2); got != "99.00" {
		t.Errorf("expected mid 99.00 after the fill, got %s", got)
	}
	filled := store.Get(filledID)
	if filled == nil || !filled.IsExecuted || !filled.IsProcessed {
		t.Error("filled order not retired as executed and processed")
	}

	// Cross purge, then both rungs rebuilt around the new mid.
	runIteration(t, engine)

	cross := store.Get(sellID)
	if cross == nil || cross.LadderState != journal.StateRemoved || !cross.IsCancelled {
		t.Error("cross sell order not removed")
	}
	if cross != nil && (cross.Cross == nil || cross.Cross.OrderID != filledID) {
		t.Error("cross provenance lost on the single-rung grid")
	}

	assertPrices(t, store, core.SideBuy, []string{"98.01"})
	assertPrices(t, store, core.SideSell, []string{"99.99"})
}

func TestBalanceAlertThreshold(t *testing.T) {
	cases := []struct {
		count int
		want  int
	}{
		{1, 1},
		{3, 1},
		{4, 2},
		{10, 4},
		{100, 33},
		{200, 66},
	}
	for _, tc := range cases {
		if got := balanceAlertThreshold(tc.count); got != tc.want {
			t.Errorf("balanceAlertThreshold(%d): expected %d, got %d", tc.count, tc.want, got)
		}
	}
}

func TestOpenOrdersOutageSkipsReconciliation(t *testing.T) {
	engine, ex, store := newTestEngine(t, 4)
	runIteration(t, engine)

	fillOrder(t, store, ex, core.SideBuy, 0)
	ex.SetOpenOrdersError(errors.New("listing down"))

	runIteration(t, engine)

	// The fill is invisible without the listing: no retirement, no mid move.
	rec := liveRecords(t, store, core.SideBuy)[0]
	if rec.LadderState != journal.StateOpen {
		t.Errorf("state changed without a listing: %s", rec.LadderState)
	}
	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "100.00" {
		t.Errorf("mid moved without a listing: %s", got)
	}

	ex.SetOpenOrdersError(nil)
	runIteration(t, engine)

	if got := loadParams(t, store).MidPrice.StringFixed(2); got != "99.00" {
		t.Errorf("fill not processed after the listing recovered: %s", got)
	}
}
