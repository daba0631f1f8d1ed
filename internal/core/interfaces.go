// Package core defines the interfaces shared across the ladder bot.
package core

import (
	"context"
)

// IExchange is the uniform venue contract the engine operates against.
// Implementations own pair normalization and market metadata caching; prices
// and amounts passed in are already truncated to venue precision.
type IExchange interface {
	GetName() string
	Features() Features

	// Market data
	MarketInfo(ctx context.Context, pair string) (*MarketInfo, error)
	GetRates(ctx context.Context, pair string) (*Rates, error)

	// Order operations
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error)
	CancelOrder(ctx context.Context, orderID string, side Side, pair string) (bool, error)
	CancelAllOrders(ctx context.Context, pair string) (bool, error)
	GetOpenOrders(ctx context.Context, pair string) ([]*Order, error)
	// GetOrderDetails is only callable when Features().HasOrderDetails is true.
	GetOrderDetails(ctx context.Context, orderID string, pair string) (*Order, error)

	// Account operations
	GetBalances(ctx context.Context, nonzeroOnly bool) ([]Balance, error)
}

// IParamStore persists the ladder parameters (mid-price and flags) across
// restarts. Writes happen once per iteration, by a single writer.
type IParamStore interface {
	LoadParams(ctx context.Context) (*LadderParams, error)
	SaveParams(ctx context.Context, params *LadderParams) error
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
