package ladder

import (
	"context"
	"errors"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
	apperrors "github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/errors"
)

// Closer retires records flagged "To be removed" and records whose index fell
// outside [0, count) after renumbering. Cancels are idempotent: an order the
// venue no longer knows counts as removed.
type Closer struct {
	exchange core.IExchange
	store    journal.Store
	logger   core.ILogger
	count    int
	metrics  metricsRecorder
}

func NewCloser(exchange core.IExchange, store journal.Store, count int, logger core.ILogger) *Closer {
	return &Closer{
		exchange: exchange,
		store:    store,
		logger:   logger.WithField("component", "closer"),
		count:    count,
		metrics:  newMetricsRecorder(),
	}
}

// Purge runs one removal pass over the live set and returns how many records
// still require removal afterwards. A non-zero residue means the iteration
// must not proceed to placement.
func (c *Closer) Purge(ctx context.Context, live []*journal.OrderRecord) int {
	return c.close(ctx, live, false)
}

// CloseAll cancels every live record regardless of state, for
// re-initialization. It reports whether the slate is clean.
func (c *Closer) CloseAll(ctx context.Context, live []*journal.OrderRecord) bool {
	return c.close(ctx, live, true) == 0
}

func (c *Closer) close(ctx context.Context, live []*journal.OrderRecord, all bool) int {
	remaining := 0
	for _, rec := range live {
		outOfRange := rec.LadderIndex < 0 || rec.LadderIndex >= c.count
		if !all && rec.LadderState != journal.StateToBeRemoved && !outOfRange {
			continue
		}

		if !rec.IsVirtual {
			ok, err := c.exchange.CancelOrder(ctx, rec.ID, rec.Side, rec.Pair)
			switch {
			case err == nil && ok:
			case errors.Is(err, apperrors.ErrOrderNotFound):
				// Already gone on the venue.
			default:
				c.logger.Warn("Cancel failed, order stays pending removal",
					"orderId", rec.ID, "index", rec.LadderIndex, "side", rec.Side, "error", err)
				remaining++
				continue
			}
		}

		rec.SetState(journal.StateRemoved, "")
		rec.IsCancelled = true
		rec.IsClosed = true
		rec.MarkProcessed()
		if err := c.store.Update(ctx, rec, true); err != nil {
			c.logger.Error("Failed to persist removed order", "orderId", rec.ID, "error", err)
			remaining++
			continue
		}

		c.metrics.cancelled(ctx, rec.Pair)
		c.logger.Info("Removed ladder order",
			"orderId", rec.ID, "index", rec.LadderIndex, "side", rec.Side, "price", rec.Price)
	}
	return remaining
}
