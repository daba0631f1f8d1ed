package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order side as exposed by venue adapters and the journal.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus is the normalized venue order status.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusPartFilled OrderStatus = "part_filled"
	OrderStatusFilled     OrderStatus = "filled"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is a venue order as returned by GetOpenOrders / GetOrderDetails.
type Order struct {
	OrderID        string
	Pair           string
	Side           Side
	Type           string // "limit" or "market"
	Price          decimal.Decimal
	Amount         decimal.Decimal
	AmountExecuted decimal.Decimal
	AmountLeft     decimal.Decimal
	Status         OrderStatus
	CreatedAt      time.Time
}

// PlaceOrderRequest carries the parameters for a limit/market placement.
// Amount is denominated in coin1 (base); QuoteAmount may be supplied instead
// for venues that accept quote-denominated market buys.
type PlaceOrderRequest struct {
	Pair        string
	Side        Side
	Price       decimal.Decimal
	Amount      decimal.Decimal
	QuoteAmount decimal.Decimal
	Limit       bool
}

// PlaceOrderResult is the outcome of a placement attempt. An empty OrderID
// with a non-empty Message means the venue refused the order; transport
// failures surface as errors instead.
type PlaceOrderResult struct {
	OrderID string
	Message string
}

// Balance is one row of a venue balance snapshot.
type Balance struct {
	Code    string
	Free    decimal.Decimal
	Freezed decimal.Decimal
	Total   decimal.Decimal
}

// Rates is a ticker snapshot for a pair.
type Rates struct {
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Last   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Volume decimal.Decimal
}

// Mid returns the bid/ask midpoint, zero when the book is empty.
func (r Rates) Mid() decimal.Decimal {
	if r.Bid.IsPositive() && r.Ask.IsPositive() {
		return r.Bid.Add(r.Ask).Div(decimal.NewFromInt(2))
	}
	return decimal.Zero
}

// MarketInfo is static venue metadata for a pair.
type MarketInfo struct {
	Pair           string
	Coin1          string // base
	Coin2          string // quote
	Coin1Decimals  int32
	Coin2Decimals  int32
	Coin1MinAmount decimal.Decimal
	Coin1MaxAmount decimal.Decimal
}

// Features describes venue adapter capabilities.
type Features struct {
	OpenOrdersCacheSec  int
	OrderNumberLimit    int
	HasOrderDetails     bool
	SupportCoinNetworks bool
	AllowQuoteMarketBuy bool
}

// LadderParams is the persisted parameter set of the ladder strategy.
type LadderParams struct {
	MidPrice     decimal.Decimal `json:"ladderMidPrice"`
	MidPriceType string          `json:"ladderMidPriceType"`
	ReInit       bool            `json:"ladderReInit"`
}
