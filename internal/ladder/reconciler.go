package ladder

import (
	"context"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
)

// Reconciler resolves the authoritative state of a journal record against the
// venue. The open-orders listing is the cheap signal; absence from it is only
// a tentative fill that must be confirmed through a per-order lookup, or,
// when the venue cannot report single orders, through the previous-rung
// heuristic. The venue's answer always wins over the heuristic.
type Reconciler struct {
	exchange   core.IExchange
	logger     core.ILogger
	prevFilled map[journal.State]bool
}

func NewReconciler(exchange core.IExchange, previousFilledStates []journal.State, logger core.ILogger) *Reconciler {
	prevFilled := make(map[journal.State]bool, len(previousFilledStates))
	for _, s := range previousFilledStates {
		prevFilled[s] = true
	}
	return &Reconciler{
		exchange:   exchange,
		logger:     logger.WithField("component", "reconciler"),
		prevFilled: prevFilled,
	}
}

// Classify returns the resolved state for rec. open is the open-orders
// listing keyed by order id; prevInitial is the state the previous rung on
// the same side held at the start of this iteration's walk.
func (r *Reconciler) Classify(ctx context.Context, rec *journal.OrderRecord, open map[string]*core.Order, prevInitial journal.State) journal.State {
	if rec.IsVirtual {
		// Nothing on the venue to reconcile against.
		return rec.LadderState
	}

	if rec.LadderState == journal.StateFilled {
		return r.confirmFill(ctx, rec, open, prevInitial)
	}

	if o, ok := open[rec.ID]; ok {
		switch o.Status {
		case core.OrderStatusPartFilled:
			return journal.StatePartlyFilled
		case core.OrderStatusFilled:
			return journal.StateFilled
		case core.OrderStatusCancelled:
			return journal.StateCancelled
		default:
			if rec.LadderState == journal.StateToBeRemoved {
				return journal.StateToBeRemoved
			}
			return journal.StateOpen
		}
	}

	switch rec.LadderState {
	case journal.StateOpen, journal.StatePartlyFilled:
		// Absent from the listing: tentative fill, confirm below.
	case journal.StateToBeRemoved:
		// Owned by the closer; absence means the cancel already landed.
		return journal.StateToBeRemoved
	default:
		return rec.LadderState
	}

	if status, ok := r.orderStatus(ctx, rec); ok {
		switch status {
		case core.OrderStatusFilled, core.OrderStatusPartFilled:
			return journal.StateFilled
		case core.OrderStatusCancelled:
			return journal.StateCancelled
		default:
			// The listing was stale; the order still rests.
			return journal.StateOpen
		}
	}

	if r.prevFilled[prevInitial] {
		return journal.StateFilled
	}
	return journal.StateMissed
}

// confirmFill re-verifies a locally Filled record. A venue answer of new or
// cancelled demotes the record to Missed so the slot can be re-placed.
func (r *Reconciler) confirmFill(ctx context.Context, rec *journal.OrderRecord, open map[string]*core.Order, prevInitial journal.State) journal.State {
	status, ok := core.OrderStatus(""), false
	if o, inList := open[rec.ID]; inList {
		status, ok = o.Status, true
	} else {
		status, ok = r.orderStatus(ctx, rec)
	}

	if ok {
		switch status {
		case core.OrderStatusFilled, core.OrderStatusPartFilled:
			return journal.StateFilled
		default:
			r.logger.Warn("Demoting unconfirmed fill",
				"orderId", rec.ID, "index", rec.LadderIndex, "side", rec.Side, "apiStatus", status)
			return journal.StateMissed
		}
	}

	if r.prevFilled[prevInitial] {
		return journal.StateFilled
	}
	return journal.StateMissed
}

// orderStatus asks the venue for one order's status, when it can.
func (r *Reconciler) orderStatus(ctx context.Context, rec *journal.OrderRecord) (core.OrderStatus, bool) {
	if !r.exchange.Features().HasOrderDetails {
		return "", false
	}
	order, err := r.exchange.GetOrderDetails(ctx, rec.ID, rec.Pair)
	if err != nil {
		r.logger.Warn("Order details unavailable", "orderId", rec.ID, "error", err)
		return "", false
	}
	return order.Status, true
}
