package ladder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
)

// BalanceGuard verifies free balances before a placement: a sell needs the
// base coin amount free, a buy needs the quote coin amount. The snapshot
// includes zero balances so a missing coin reads as zero, not as unknown.
type BalanceGuard struct {
	exchange core.IExchange
	logger   core.ILogger
}

func NewBalanceGuard(exchange core.IExchange, logger core.ILogger) *BalanceGuard {
	return &BalanceGuard{
		exchange: exchange,
		logger:   logger.WithField("component", "balance_guard"),
	}
}

// Check reports whether the placement is funded. The message describes the
// shortfall for notifications; it is empty when the check passes.
func (g *BalanceGuard) Check(ctx context.Context, side core.Side, market *core.MarketInfo, coin1Amount, coin2Amount decimal.Decimal) (bool, string) {
	balances, err := g.exchange.GetBalances(ctx, false)
	if err != nil {
		g.logger.Warn("Unable to fetch balances", "error", err)
		return false, fmt.Sprintf("unable to fetch balances: %v", err)
	}

	free := func(coin string) decimal.Decimal {
		for _, b := range balances {
			if b.Code == coin {
				return b.Free
			}
		}
		return decimal.Zero
	}

	coin, needed := market.Coin2, coin2Amount
	if side == core.SideSell {
		coin, needed = market.Coin1, coin1Amount
	}

	available := free(coin)
	if available.GreaterThanOrEqual(needed) {
		return true, ""
	}
	return false, fmt.Sprintf("not enough %s to place a %s order: free %s, needed %s",
		coin, side, available, needed)
}
