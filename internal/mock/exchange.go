// Package mock provides an in-memory venue used by tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	apperrors "github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/errors"
)

// Exchange is a configurable in-memory core.IExchange. Orders rest until a
// test moves them with SetOrderStatus or RemoveOrder; balances and rates are
// set directly.
type Exchange struct {
	mu sync.Mutex

	features core.Features
	market   core.MarketInfo
	rates    core.Rates
	ratesErr error
	balances map[string]decimal.Decimal

	orders map[string]*core.Order
	nextID int

	failPlace      bool
	refuseMessage  string
	openOrdersErr  error
	detailsErr     error
	cancelErr      error
	cancelledIDs   []string
	placedRequests []core.PlaceOrderRequest
}

func NewExchange() *Exchange {
	return &Exchange{
		features: core.Features{
			OpenOrdersCacheSec: 1,
			HasOrderDetails:    true,
		},
		market: core.MarketInfo{
			Pair:           "BTC/USDT",
			Coin1:          "BTC",
			Coin2:          "USDT",
			Coin1Decimals:  8,
			Coin2Decimals:  2,
			Coin1MinAmount: decimal.RequireFromString("0.0001"),
		},
		balances: make(map[string]decimal.Decimal),
		orders:   make(map[string]*core.Order),
		nextID:   1000,
	}
}

func (e *Exchange) GetName() string         { return "mock" }
func (e *Exchange) Features() core.Features { return e.features }

// SetFeatures overrides the advertised capabilities.
func (e *Exchange) SetFeatures(f core.Features) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features = f
}

// SetMarket overrides the market metadata.
func (e *Exchange) SetMarket(m core.MarketInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.market = m
}

// SetRates sets the ticker snapshot; err makes GetRates fail.
func (e *Exchange) SetRates(rates core.Rates, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates = rates
	e.ratesErr = err
}

// SetBalance sets the free balance for a coin.
func (e *Exchange) SetBalance(coin string, free decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[coin] = free
}

// SetOrderStatus moves a resting order to a new status. Filled and cancelled
// orders drop out of the open-orders listing.
func (e *Exchange) SetOrderStatus(orderID string, status core.OrderStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[orderID]; ok {
		o.Status = status
		if status == core.OrderStatusFilled {
			o.AmountExecuted = o.Amount
			o.AmountLeft = decimal.Zero
		}
	}
}

// RemoveOrder deletes the order entirely, as if the venue lost it.
func (e *Exchange) RemoveOrder(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.orders, orderID)
}

// FailPlacements makes PlaceOrder refuse with the given message. An empty
// message restores normal behavior.
func (e *Exchange) FailPlacements(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failPlace = message != ""
	e.refuseMessage = message
}

// SetOpenOrdersError makes GetOpenOrders fail.
func (e *Exchange) SetOpenOrdersError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openOrdersErr = err
}

// SetCancelError makes CancelOrder fail.
func (e *Exchange) SetCancelError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelErr = err
}

// SetDetailsError makes GetOrderDetails fail.
func (e *Exchange) SetDetailsError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detailsErr = err
}

// CancelledIDs returns every order id passed to CancelOrder.
func (e *Exchange) CancelledIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.cancelledIDs))
	copy(out, e.cancelledIDs)
	return out
}

// PlacedRequests returns every request passed to PlaceOrder.
func (e *Exchange) PlacedRequests() []core.PlaceOrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.PlaceOrderRequest, len(e.placedRequests))
	copy(out, e.placedRequests)
	return out
}

func (e *Exchange) MarketInfo(ctx context.Context, pair string) (*core.MarketInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.market
	return &m, nil
}

func (e *Exchange) GetRates(ctx context.Context, pair string) (*core.Rates, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ratesErr != nil {
		return nil, e.ratesErr
	}
	r := e.rates
	return &r, nil
}

func (e *Exchange) PlaceOrder(ctx context.Context, req *core.PlaceOrderRequest) (*core.PlaceOrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.placedRequests = append(e.placedRequests, *req)

	if e.failPlace {
		return &core.PlaceOrderResult{Message: e.refuseMessage}, nil
	}

	e.nextID++
	id := fmt.Sprintf("%d", e.nextID)
	e.orders[id] = &core.Order{
		OrderID:    id,
		Pair:       req.Pair,
		Side:       req.Side,
		Type:       "limit",
		Price:      req.Price,
		Amount:     req.Amount,
		AmountLeft: req.Amount,
		Status:     core.OrderStatusNew,
	}
	return &core.PlaceOrderResult{OrderID: id}, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, orderID string, side core.Side, pair string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelledIDs = append(e.cancelledIDs, orderID)

	if e.cancelErr != nil {
		return false, e.cancelErr
	}

	o, ok := e.orders[orderID]
	if !ok {
		return false, apperrors.ErrOrderNotFound
	}
	o.Status = core.OrderStatusCancelled
	return true, nil
}

func (e *Exchange) CancelAllOrders(ctx context.Context, pair string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.orders {
		if o.Status == core.OrderStatusNew || o.Status == core.OrderStatusPartFilled {
			o.Status = core.OrderStatusCancelled
		}
	}
	return true, nil
}

func (e *Exchange) GetOpenOrders(ctx context.Context, pair string) ([]*core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openOrdersErr != nil {
		return nil, e.openOrdersErr
	}
	var out []*core.Order
	for _, o := range e.orders {
		if o.Status == core.OrderStatusNew || o.Status == core.OrderStatusPartFilled {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (e *Exchange) GetOrderDetails(ctx context.Context, orderID string, pair string) (*core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detailsErr != nil {
		return nil, e.detailsErr
	}
	o, ok := e.orders[orderID]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (e *Exchange) GetBalances(ctx context.Context, nonzeroOnly bool) ([]core.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []core.Balance
	for coin, free := range e.balances {
		if nonzeroOnly && free.IsZero() {
			continue
		}
		out = append(out, core.Balance{Code: coin, Free: free, Total: free})
	}
	return out, nil
}
