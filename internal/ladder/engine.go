package ladder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/alert"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
	apperrors "github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/errors"
)

// Not-placed reasons persisted on order records.
const (
	ReasonRatesUnavailable = "Rates unavailable"
	ReasonMinimalAmount    = "Minimal order amount is not met"
	ReasonNotEnoughBalance = "Not enough balances"
	ReasonNoOrderID        = "No order id returned"
	ReasonCancelFailed     = "Previous order still active"
)

// alertCooldown rate-limits repeating notifications of the same kind.
const alertCooldown = time.Hour

// Notifier dispatches human-facing alerts. May be satisfied by alert.Manager.
type Notifier interface {
	Notify(ctx context.Context, title, message string, level alert.Level, fields map[string]string)
}

// Engine runs one ladder maintenance iteration at a time: purge flagged
// orders, reconcile each rung against the venue, place into free slots,
// renumber after fills, then move the mid-price. Every iteration
// re-establishes correctness from the journal, so a crash between any two
// steps only costs time, not consistency.
type Engine struct {
	cfg      Config
	exchange core.IExchange
	store    journal.Store
	params   core.IParamStore
	notifier Notifier
	logger   core.ILogger
	metrics  metricsRecorder

	reconciler *Reconciler
	closer     *Closer
	guard      *BalanceGuard

	market *core.MarketInfo
	pricer *Pricer
	sizer  *Sizer

	lastBalanceAlert time.Time
	lastRatesAlert   time.Time
}

func NewEngine(cfg Config, exchange core.IExchange, store journal.Store, params core.IParamStore, notifier Notifier, logger core.ILogger) *Engine {
	logger = logger.WithFields(map[string]interface{}{
		"component": "ladder_engine",
		"pair":      cfg.Pair,
		"exchange":  cfg.Exchange,
	})

	return &Engine{
		cfg:        cfg,
		exchange:   exchange,
		store:      store,
		params:     params,
		notifier:   notifier,
		logger:     logger,
		metrics:    newMetricsRecorder(),
		reconciler: NewReconciler(exchange, cfg.PreviousFilledStates, logger),
		closer:     NewCloser(exchange, store, cfg.Count, logger),
		guard:      NewBalanceGuard(exchange, logger),
	}
}

// iterState accumulates fill evidence across one iteration's walks.
type iterState struct {
	maxFilled   map[core.Side]int
	filledPrice map[core.Side]map[int]decimal.Decimal
}

func newIterState() *iterState {
	return &iterState{
		maxFilled: map[core.Side]int{core.SideBuy: -1, core.SideSell: -1},
		filledPrice: map[core.Side]map[int]decimal.Decimal{
			core.SideBuy:  {},
			core.SideSell: {},
		},
	}
}

// RunIteration executes one maintenance pass. Errors are returned for the
// scheduler to count; the next iteration starts from the journal regardless.
func (e *Engine) RunIteration(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Iteration panicked", "panic", r)
			err = fmt.Errorf("iteration panic: %v", r)
		}
		e.metrics.iteration(ctx, e.cfg.Pair, time.Since(start), err != nil)
	}()

	if err := e.ensureMarket(ctx); err != nil {
		return fmt.Errorf("market info: %w", err)
	}

	params, err := e.params.LoadParams(ctx)
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}

	if params.ReInit {
		return e.reInit(ctx, params)
	}

	live, _, err := e.liveSet(ctx)
	if err != nil {
		return err
	}
	if residue := e.closer.Purge(ctx, live); residue > 0 {
		e.logger.Warn("Orders still pending removal, skipping placement", "count", residue)
		return nil
	}

	mid, midType := e.resolveMid(ctx, params)
	openOrders, listingOK := e.openOrders(ctx)

	it := newIterState()
	for _, side := range []core.Side{core.SideBuy, core.SideSell} {
		// Re-read between sides so cross markings from the first walk are
		// visible to the second.
		_, index, err := e.liveSet(ctx)
		if err != nil {
			return err
		}
		e.walkSide(ctx, side, index, openOrders, listingOK, mid, it)
	}

	live, _, err = e.liveSet(ctx)
	if err != nil {
		return err
	}
	e.shiftIndices(ctx, live, it)

	if err := e.updateMid(ctx, params, mid, midType, it); err != nil {
		return err
	}

	if live, _, err := e.liveSet(ctx); err == nil {
		e.metrics.gauges(e.cfg.Pair, int64(len(live)), params.MidPrice.InexactFloat64())
	}
	return nil
}

// reInit cancels the whole grid and clears the persisted mid so the next
// iteration rebuilds from scratch. The flag survives until the slate is clean.
func (e *Engine) reInit(ctx context.Context, params *core.LadderParams) error {
	live, _, err := e.liveSet(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("Re-initializing ladder", "liveOrders", len(live))

	if !e.closer.CloseAll(ctx, live) {
		e.logger.Warn("Re-initialization incomplete, will retry next iteration")
		return nil
	}

	params.ReInit = false
	params.MidPrice = decimal.Zero
	params.MidPriceType = ""
	return e.params.SaveParams(ctx, params)
}

func (e *Engine) ensureMarket(ctx context.Context) error {
	if e.market != nil {
		return nil
	}
	market, err := e.exchange.MarketInfo(ctx, e.cfg.Pair)
	if err != nil {
		return err
	}
	e.market = market
	e.pricer = NewPricer(e.cfg.PriceStepPercent, market.Coin2Decimals)
	e.sizer = NewSizer(e.cfg.Amount, e.cfg.AmountCoin, e.cfg.AmountDeviation,
		market.Coin1Decimals, time.Now().UnixNano())
	return nil
}

// resolveMid returns the working mid-price and its provenance label:
// persisted params first, then the configured initial mid, then live rates.
func (e *Engine) resolveMid(ctx context.Context, params *core.LadderParams) (decimal.Decimal, string) {
	if params.MidPrice.IsPositive() {
		typ := params.MidPriceType
		if typ == "" {
			typ = "Saved"
		}
		return params.MidPrice, typ
	}
	if e.cfg.InitialMidPrice.IsPositive() {
		typ := e.cfg.MidPriceType
		if typ == "" {
			typ = "Config"
		}
		return e.cfg.InitialMidPrice, typ
	}

	rates, err := e.exchange.GetRates(ctx, e.cfg.Pair)
	if err != nil {
		e.logger.Warn("Rates unavailable", "error", err)
		return decimal.Zero, ""
	}
	return rates.Mid(), "Rates"
}

func (e *Engine) openOrders(ctx context.Context) (map[string]*core.Order, bool) {
	orders, err := e.exchange.GetOpenOrders(ctx, e.cfg.Pair)
	if err != nil {
		e.logger.Warn("Open orders listing unavailable, skipping reconciliation", "error", err)
		return nil, false
	}
	out := make(map[string]*core.Order, len(orders))
	for _, o := range orders {
		out[o.OrderID] = o
	}
	return out, true
}

// liveSet loads non-processed records and indexes them by side and rung.
func (e *Engine) liveSet(ctx context.Context) ([]*journal.OrderRecord, map[core.Side]map[int]*journal.OrderRecord, error) {
	live, err := e.store.LiveOrders(ctx, journal.PurposeLadder, e.cfg.Pair, e.cfg.Exchange)
	if err != nil {
		return nil, nil, fmt.Errorf("load live orders: %w", err)
	}
	index := map[core.Side]map[int]*journal.OrderRecord{
		core.SideBuy:  {},
		core.SideSell: {},
	}
	for _, rec := range live {
		index[rec.Side][rec.LadderIndex] = rec
	}
	return live, index, nil
}

// walkSide visits every rung of one side in index order, resolving states,
// processing fills, and placing into free slots. The cursor carries the last
// rung with a usable price so each placement derives from its neighbor.
func (e *Engine) walkSide(ctx context.Context, side core.Side, index map[core.Side]map[int]*journal.OrderRecord, open map[string]*core.Order, listingOK bool, mid decimal.Decimal, it *iterState) {
	var cursor *journal.OrderRecord
	prevInitial := journal.StateUndefined

	for idx := 0; idx < e.cfg.Count; idx++ {
		rec := index[side][idx]
		initial := journal.StateUndefined
		if rec != nil {
			initial = rec.LadderState
		}

		resolved := initial
		if rec != nil && !rec.IsVirtual {
			switch {
			case listingOK:
				resolved = e.reconciler.Classify(ctx, rec, open, prevInitial)
			case initial == journal.StateFilled:
				// A locally recorded fill may be a crash artifact. It must
				// not retire the rung or move the mid until the venue
				// confirms it, and the per-order lookup works without the
				// listing.
				resolved = e.reconciler.Classify(ctx, rec, nil, prevInitial)
			}
		}

		if rec != nil && resolved != initial {
			rec.SetState(resolved, "")
			e.update(ctx, rec, resolved == journal.StateFilled)
			e.logger.Debug("Reconciled order state",
				"orderId", rec.ID, "side", side, "index", idx, "from", initial, "to", resolved)
		}

		switch resolved {
		case journal.StateFilled:
			e.handleFill(ctx, rec, index, it)
			cursor, prevInitial = rec, initial
			continue
		case journal.StateOpen, journal.StatePartlyFilled, journal.StateToBeRemoved:
			cursor, prevInitial = rec, initial
			continue
		}

		// The slot is empty or re-placeable.
		if placed := e.placeSlot(ctx, side, idx, rec, cursor, mid, it); placed != nil {
			cursor = placed
		}
		prevInitial = initial
	}
}

// handleFill retires a confirmed fill, records its evidence for renumbering
// and mid-price movement, and flags the cross rung on the opposite side.
func (e *Engine) handleFill(ctx context.Context, rec *journal.OrderRecord, index map[core.Side]map[int]*journal.OrderRecord, it *iterState) {
	side := rec.Side
	idx := rec.LadderIndex

	if idx > it.maxFilled[side] {
		it.maxFilled[side] = idx
	}
	it.filledPrice[side][idx] = rec.Price

	rec.IsExecuted = true
	rec.MarkProcessed()
	e.update(ctx, rec, true)
	e.metrics.filled(ctx, rec.Pair)

	e.logger.Info("Ladder order filled",
		"orderId", rec.ID, "side", side, "index", idx, "price", rec.Price, "amount", rec.Coin1Amount)
	e.notify(ctx, "Order filled",
		fmt.Sprintf("%s %s %s @ %s filled at rung %d", rec.Coin1Amount, e.market.Coin1, side, rec.Price, idx),
		alert.Info)

	crossIdx := e.cfg.Count - 1 - idx
	cross := index[side.Opposite()][crossIdx]
	if cross == nil || cross.IsProcessed || cross.LadderState == journal.StateToBeRemoved {
		return
	}
	cross.SetState(journal.StateToBeRemoved, "")
	cross.SetCross(rec)
	e.update(ctx, cross, true)
	e.logger.Info("Flagged cross order for removal",
		"orderId", cross.ID, "side", cross.Side, "index", crossIdx, "filledOrderId", rec.ID)
}

// placeSlot attempts to fill one free rung. It returns the record that now
// carries the slot's target price, or nil when no price could be derived.
// Failures persist as Not placed with a reason; the slot retries next
// iteration.
func (e *Engine) placeSlot(ctx context.Context, side core.Side, idx int, prior, cursor *journal.OrderRecord, mid decimal.Decimal, it *iterState) *journal.OrderRecord {
	var price decimal.Decimal
	switch {
	case cursor != nil && cursor.Price.IsPositive():
		price = e.pricer.Next(side, cursor.Price)
	case mid.IsPositive():
		price = e.pricer.Next(side, mid)
	}

	rec := prior
	if rec == nil || !rec.IsVirtual {
		rec = e.newRecord(side, idx)
	}

	if !price.IsPositive() {
		rec.SetState(journal.StateNotPlaced, ReasonRatesUnavailable)
		e.persistPlacement(ctx, prior, rec)
		e.metrics.notPlaced(ctx, e.cfg.Pair, "rates_unavailable")
		e.notifyRatesUnavailable(ctx)
		return nil
	}

	rec.Price = price
	coin1, coin2 := e.sizer.Amounts(price)
	rec.Coin1Amount = coin1
	rec.Coin2Amount = coin2
	rec.Coin1AmountInitial = coin1

	if coin1.LessThan(e.market.Coin1MinAmount) {
		rec.SetState(journal.StateNotPlaced, ReasonMinimalAmount)
		e.persistPlacement(ctx, prior, rec)
		e.metrics.notPlaced(ctx, e.cfg.Pair, "minimal_amount")
		return rec
	}

	if ok, msg := e.guard.Check(ctx, side, e.market, coin1, coin2); !ok {
		rec.SetState(journal.StateNotPlaced, ReasonNotEnoughBalance)
		e.persistPlacement(ctx, prior, rec)
		e.metrics.notPlaced(ctx, e.cfg.Pair, "balances")
		e.notifyBalanceShortfall(ctx, idx, msg)
		return rec
	}

	// A Missed slot may still have a stale order resting on the venue; it
	// must be gone before the replacement goes out, or the rung doubles up.
	if prior != nil && !prior.IsVirtual && prior.LadderState == journal.StateMissed {
		if _, err := e.exchange.CancelOrder(ctx, prior.ID, prior.Side, prior.Pair); err != nil && !errors.Is(err, apperrors.ErrOrderNotFound) {
			e.logger.Warn("Failed to cancel stale order before re-placing",
				"orderId", prior.ID, "index", idx, "error", err)
			rec.SetState(journal.StateNotPlaced, ReasonCancelFailed)
			e.persistPlacement(ctx, prior, rec)
			e.metrics.notPlaced(ctx, e.cfg.Pair, "cancel_failed")
			return rec
		}
	}

	result, err := e.exchange.PlaceOrder(ctx, &core.PlaceOrderRequest{
		Pair:   e.cfg.Pair,
		Side:   side,
		Price:  price,
		Amount: coin1,
		Limit:  true,
	})
	if err != nil {
		e.logger.Warn("Placement failed",
			"side", side, "index", idx, "price", price, "error", err)
		rec.SetState(journal.StateNotPlaced, err.Error())
		e.persistPlacement(ctx, prior, rec)
		e.metrics.notPlaced(ctx, e.cfg.Pair, "error")
		return rec
	}
	if result.OrderID == "" {
		reason := result.Message
		if reason == "" {
			reason = ReasonNoOrderID
		}
		e.logger.Warn("Placement refused",
			"side", side, "index", idx, "price", price, "reason", reason)
		rec.SetState(journal.StateNotPlaced, reason)
		e.persistPlacement(ctx, prior, rec)
		e.metrics.notPlaced(ctx, e.cfg.Pair, "refused")
		return rec
	}

	// Promote the virtual record: the venue id takes over and the surrogate
	// stays behind for audit.
	placed := *rec
	placed.LadderPreviousOrderID = rec.ID
	placed.ID = result.OrderID
	placed.IsVirtual = false
	placed.SetState(journal.StateOpen, "")
	if err := e.store.Save(ctx, &placed); err != nil {
		e.logger.Error("Failed to persist placed order", "orderId", placed.ID, "error", err)
	}
	if prior != nil {
		prior.IsProcessed = true
		prior.IsClosed = true
		prior.LadderReplacedByOrderID = placed.ID
		e.update(ctx, prior, false)
	}

	e.metrics.placed(ctx, e.cfg.Pair)
	e.logger.Info("Placed ladder order",
		"orderId", placed.ID, "side", side, "index", idx, "price", price, "amount", coin1)
	return &placed
}

func (e *Engine) newRecord(side core.Side, idx int) *journal.OrderRecord {
	now := time.Now().UTC()
	return &journal.OrderRecord{
		ID:                  uuid.NewString(),
		Purpose:             journal.PurposeLadder,
		Pair:                e.cfg.Pair,
		Exchange:            e.cfg.Exchange,
		Side:                side,
		LadderIndex:         idx,
		LadderPreviousIndex: idx,
		IsVirtual:           true,
		CreatedAt:           now,
		LadderUpdateDate:    now,
	}
}

// persistPlacement saves the slot's current record and retires a superseded
// prior record so the rung keeps at most one live entry.
func (e *Engine) persistPlacement(ctx context.Context, prior, rec *journal.OrderRecord) {
	if err := e.store.Save(ctx, rec); err != nil {
		e.logger.Error("Failed to persist order record", "orderId", rec.ID, "error", err)
	}
	if prior != nil && prior.ID != rec.ID {
		prior.IsProcessed = true
		prior.IsClosed = true
		prior.LadderReplacedByOrderID = rec.ID
		e.update(ctx, prior, false)
	}
}

// shiftIndices renumbers the live set after fills: a side with fills through
// rung m moves up by m+1 while the opposite side moves down by m+1, restoring
// rung 0 adjacency to the new mid.
func (e *Engine) shiftIndices(ctx context.Context, live []*journal.OrderRecord, it *iterState) {
	delta := map[core.Side]int{}
	for _, side := range []core.Side{core.SideBuy, core.SideSell} {
		m := it.maxFilled[side]
		if m < 0 {
			continue
		}
		delta[side] -= m + 1
		delta[side.Opposite()] += m + 1
	}
	if delta[core.SideBuy] == 0 && delta[core.SideSell] == 0 {
		return
	}

	e.logger.Info("Renumbering ladder after fills",
		"buyDelta", delta[core.SideBuy], "sellDelta", delta[core.SideSell])
	for _, rec := range live {
		d := delta[rec.Side]
		if d == 0 {
			continue
		}
		rec.ShiftIndex(d)
		e.update(ctx, rec, false)
	}
}

// updateMid moves the persisted mid-price from this iteration's fills. With
// fills on both sides the net direction decides which side's rung prices the
// new mid; a draw keeps it in place.
func (e *Engine) updateMid(ctx context.Context, params *core.LadderParams, mid decimal.Decimal, midType string, it *iterState) error {
	mb := it.maxFilled[core.SideBuy]
	ms := it.maxFilled[core.SideSell]

	if mb < 0 && ms < 0 {
		// No fills: persist the initial mid once so restarts reuse it.
		if !params.MidPrice.IsPositive() && mid.IsPositive() {
			params.MidPrice = mid
			params.MidPriceType = midType
			return e.params.SaveParams(ctx, params)
		}
		return nil
	}

	newMid := decimal.Zero
	d := mb - ms
	switch {
	case mb >= 0 && ms >= 0 && d == 0:
		newMid = mid
	case mb >= 0 && ms >= 0 && d > 0:
		newMid = it.filledPrice[core.SideBuy][d-1]
	case mb >= 0 && ms >= 0 && d < 0:
		newMid = it.filledPrice[core.SideSell][-d-1]
	case mb >= 0:
		newMid = it.filledPrice[core.SideBuy][mb]
	default:
		newMid = it.filledPrice[core.SideSell][ms]
	}

	if !newMid.IsPositive() {
		e.logger.Warn("No usable fill price for the mid-price move, keeping previous mid",
			"mid", mid, "maxFilledBuy", mb, "maxFilledSell", ms)
		newMid = mid
	}
	if !newMid.IsPositive() {
		return nil
	}

	e.logger.Info("Mid-price moved", "from", mid, "to", newMid)
	params.MidPrice = newMid
	params.MidPriceType = "Shifted"
	return e.params.SaveParams(ctx, params)
}

func (e *Engine) update(ctx context.Context, rec *journal.OrderRecord, flush bool) {
	if err := e.store.Update(ctx, rec, flush); err != nil {
		e.logger.Error("Failed to persist order record", "orderId", rec.ID, "error", err)
	}
}

func (e *Engine) notify(ctx context.Context, title, message string, level alert.Level) {
	if e.notifier == nil {
		return
	}
	if e.cfg.NotifyName != "" {
		title = e.cfg.NotifyName + ": " + title
	}
	e.notifier.Notify(ctx, title, message, level, map[string]string{
		"pair":     e.cfg.Pair,
		"exchange": e.cfg.Exchange,
	})
}

// balanceAlertThreshold bounds the rung indices that warrant a shortfall
// alert: the inner 33% of the grid, rounded up so a small grid still alerts.
func balanceAlertThreshold(count int) int {
	return int(math.Ceil(float64(count) * 0.33))
}

// notifyBalanceShortfall alerts only when the shortfall hits the inner third
// of the grid, at most once per cooldown window.
func (e *Engine) notifyBalanceShortfall(ctx context.Context, idx int, msg string) {
	if idx >= balanceAlertThreshold(e.cfg.Count) {
		return
	}
	if time.Since(e.lastBalanceAlert) < alertCooldown {
		return
	}
	e.lastBalanceAlert = time.Now()
	e.notify(ctx, "Not enough balances", msg, alert.Warning)
}

func (e *Engine) notifyRatesUnavailable(ctx context.Context) {
	if time.Since(e.lastRatesAlert) < alertCooldown {
		return
	}
	e.lastRatesAlert = time.Now()
	e.notify(ctx, "Rates unavailable",
		fmt.Sprintf("Cannot resolve a mid-price for %s, placements are suspended", e.cfg.Pair),
		alert.Warning)
}
