// Package bitfinex implements the venue adapter for the Bitfinex v2 API.
package bitfinex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/exchange/base"
	apperrors "github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/errors"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/httpclient"
)

const (
	defaultBaseURL = "https://api.bitfinex.com"
	defaultPubURL  = "https://api-pub.bitfinex.com"
	defaultWSURL   = "wss://api-pub.bitfinex.com/ws/2"

	// Amounts use 8 decimals; prices are quoted to 5 significant digits, so
	// the per-step quote rounding keeps the full 8 and the significant-digit
	// clamp does the work.
	amountDecimals = 8
	priceDecimals  = 8
)

// Options configures the adapter. Empty URLs fall back to production.
type Options struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	PubURL    string
	WSURL     string
	UseTicker bool
	Pair      string
	Logger    core.ILogger
}

// Exchange implements core.IExchange for Bitfinex.
type Exchange struct {
	*base.Adapter

	pub    *httpclient.Client
	ticker *TickerStream
}

func New(opts Options) (*Exchange, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PubURL == "" {
		opts.PubURL = defaultPubURL
	}
	if opts.WSURL == "" {
		opts.WSURL = defaultWSURL
	}

	e := &Exchange{
		pub: httpclient.NewClient(opts.PubURL, 10*time.Second, nil),
	}

	e.Adapter = base.NewAdapter(base.Config{
		Name:        "bitfinex",
		BaseURL:     opts.BaseURL,
		Timeout:     10 * time.Second,
		Signer:      &signer{apiKey: opts.APIKey, secretKey: opts.SecretKey},
		RatePerSec:  3,
		Burst:       6,
		MarketTTL:   time.Hour,
		LoadMarkets: e.loadMarkets,
		Logger:      opts.Logger,
	})

	if opts.UseTicker {
		symbol, err := toSymbol(opts.Pair)
		if err != nil {
			return nil, err
		}
		e.ticker = newTickerStream(opts.WSURL, symbol, e.Logger)
		e.ticker.Start()
	}

	return e, nil
}

// Close stops the ticker stream, if one is running.
func (e *Exchange) Close() {
	if e.ticker != nil {
		e.ticker.Stop()
	}
}

func (e *Exchange) GetName() string { return "bitfinex" }

func (e *Exchange) Features() core.Features {
	return core.Features{
		OpenOrdersCacheSec:  15,
		OrderNumberLimit:    200,
		HasOrderDetails:     true,
		SupportCoinNetworks: true,
		AllowQuoteMarketBuy: false,
	}
}

// GetRates prefers the streamed snapshot and falls back to the REST ticker.
func (e *Exchange) GetRates(ctx context.Context, pair string) (*core.Rates, error) {
	if e.ticker != nil {
		if rates, ok := e.ticker.Snapshot(); ok {
			return &rates, nil
		}
	}

	symbol, err := toSymbol(pair)
	if err != nil {
		return nil, err
	}
	if err := e.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := e.pub.Get(ctx, "/v2/ticker/"+symbol, nil)
	if err != nil {
		return nil, e.mapError(err)
	}

	raw, err := decodeArray(body)
	if err != nil || len(raw) < 10 {
		return nil, fmt.Errorf("malformed ticker response: %w", err)
	}

	return &core.Rates{
		Bid:    asDecimal(raw[0]),
		Ask:    asDecimal(raw[2]),
		Last:   asDecimal(raw[6]),
		Volume: asDecimal(raw[7]),
		High:   asDecimal(raw[8]),
		Low:    asDecimal(raw[9]),
	}, nil
}

func (e *Exchange) PlaceOrder(ctx context.Context, req *core.PlaceOrderRequest) (*core.PlaceOrderResult, error) {
	symbol, err := toSymbol(req.Pair)
	if err != nil {
		return nil, err
	}
	if err := e.Wait(ctx); err != nil {
		return nil, err
	}

	amount := req.Amount
	if req.Side == core.SideSell {
		amount = amount.Neg()
	}

	orderType := "EXCHANGE MARKET"
	payload := map[string]interface{}{
		"symbol": symbol,
		"amount": amount.String(),
	}
	if req.Limit {
		orderType = "EXCHANGE LIMIT"
		payload["price"] = req.Price.String()
	}
	payload["type"] = orderType

	body, err := e.HTTP.Post(ctx, "/v2/auth/w/order/submit", payload)
	if err != nil {
		return nil, e.mapError(err)
	}

	// Notification: [MTS, TYPE, MSG_ID, null, [ORDER...], CODE, STATUS, TEXT].
	raw, err := decodeArray(body)
	if err != nil || len(raw) < 8 {
		return nil, fmt.Errorf("malformed submit response: %w", err)
	}
	if status := asString(raw[6]); status != "SUCCESS" {
		// The venue acknowledged the request but refused the order.
		return &core.PlaceOrderResult{Message: asString(raw[7])}, nil
	}

	orders := asArray(raw[4])
	if len(orders) == 0 {
		return &core.PlaceOrderResult{Message: "no order in submit response"}, nil
	}
	order := parseOrder(asArray(orders[0]))
	if order == nil {
		return &core.PlaceOrderResult{Message: "malformed order in submit response"}, nil
	}
	return &core.PlaceOrderResult{OrderID: order.OrderID}, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, orderID string, side core.Side, pair string) (bool, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("order id %q is not numeric: %w", orderID, err)
	}
	if err := e.Wait(ctx); err != nil {
		return false, err
	}

	body, err := e.HTTP.Post(ctx, "/v2/auth/w/order/cancel", map[string]interface{}{"id": id})
	if err != nil {
		return false, e.mapError(err)
	}

	raw, err := decodeArray(body)
	if err != nil || len(raw) < 8 {
		return false, fmt.Errorf("malformed cancel response: %w", err)
	}
	if status := asString(raw[6]); status != "SUCCESS" {
		text := asString(raw[7])
		if strings.Contains(strings.ToLower(text), "not found") {
			return false, apperrors.ErrOrderNotFound
		}
		return false, nil
	}
	return true, nil
}

func (e *Exchange) CancelAllOrders(ctx context.Context, pair string) (bool, error) {
	orders, err := e.GetOpenOrders(ctx, pair)
	if err != nil {
		return false, err
	}
	if len(orders) == 0 {
		return true, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		id, err := strconv.ParseInt(o.OrderID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := e.Wait(ctx); err != nil {
		return false, err
	}

	_, err = e.HTTP.Post(ctx, "/v2/auth/w/order/cancel/multi", map[string]interface{}{"id": ids})
	if err != nil {
		return false, e.mapError(err)
	}
	return true, nil
}

func (e *Exchange) GetOpenOrders(ctx context.Context, pair string) ([]*core.Order, error) {
	symbol, err := toSymbol(pair)
	if err != nil {
		return nil, err
	}
	if err := e.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := e.HTTP.Post(ctx, "/v2/auth/r/orders/"+symbol, map[string]interface{}{})
	if err != nil {
		return nil, e.mapError(err)
	}

	raw, err := decodeArray(body)
	if err != nil {
		return nil, fmt.Errorf("malformed orders response: %w", err)
	}

	out := make([]*core.Order, 0, len(raw))
	for _, item := range raw {
		if order := parseOrder(asArray(item)); order != nil {
			out = append(out, order)
		}
	}
	return out, nil
}

// GetOrderDetails looks the order up among active orders first, then in
// history. An order present in neither maps to ErrOrderNotFound.
func (e *Exchange) GetOrderDetails(ctx context.Context, orderID string, pair string) (*core.Order, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("order id %q is not numeric: %w", orderID, err)
	}

	for _, path := range []string{"/v2/auth/r/orders", "/v2/auth/r/orders/hist"} {
		if err := e.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := e.HTTP.Post(ctx, path, map[string]interface{}{"id": []int64{id}})
		if err != nil {
			return nil, e.mapError(err)
		}
		raw, err := decodeArray(body)
		if err != nil {
			return nil, fmt.Errorf("malformed order details response: %w", err)
		}
		for _, item := range raw {
			if order := parseOrder(asArray(item)); order != nil && order.OrderID == orderID {
				return order, nil
			}
		}
	}
	return nil, apperrors.ErrOrderNotFound
}

// GetBalances reports the exchange wallet. Wallet rows are
// [WALLET_TYPE, CURRENCY, BALANCE, UNSETTLED_INTEREST, AVAILABLE_BALANCE, ...].
func (e *Exchange) GetBalances(ctx context.Context, nonzeroOnly bool) ([]core.Balance, error) {
	if err := e.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := e.HTTP.Post(ctx, "/v2/auth/r/wallets", map[string]interface{}{})
	if err != nil {
		return nil, e.mapError(err)
	}

	raw, err := decodeArray(body)
	if err != nil {
		return nil, fmt.Errorf("malformed wallets response: %w", err)
	}

	var out []core.Balance
	for _, item := range raw {
		row := asArray(item)
		if len(row) < 5 || asString(row[0]) != "exchange" {
			continue
		}
		total := asDecimal(row[2])
		free := asDecimal(row[4])
		if nonzeroOnly && total.IsZero() {
			continue
		}
		out = append(out, core.Balance{
			Code:    unaliasCoin(asString(row[1])),
			Free:    free,
			Freezed: total.Sub(free),
			Total:   total,
		})
	}
	return out, nil
}

// loadMarkets builds the market table from /v2/conf/pub:info:pair:
// [[[PAIR, [_,_,_, MIN_SIZE, MAX_SIZE, ...]], ...]].
func (e *Exchange) loadMarkets(ctx context.Context) (map[string]*core.MarketInfo, error) {
	body, err := e.pub.Get(ctx, "/v2/conf/pub:info:pair", nil)
	if err != nil {
		return nil, e.mapError(err)
	}

	raw, err := decodeArray(body)
	if err != nil || len(raw) < 1 {
		return nil, fmt.Errorf("malformed pair info response: %w", err)
	}

	markets := make(map[string]*core.MarketInfo)
	for _, item := range asArray(raw[0]) {
		entry := asArray(item)
		if len(entry) < 2 {
			continue
		}
		pair := fromSymbol(asString(entry[0]))
		coin1, coin2, err := base.SplitPair(pair)
		if err != nil {
			continue
		}

		var minAmount, maxAmount decimal.Decimal
		if info := asArray(entry[1]); len(info) > 4 {
			minAmount = asDecimal(info[3])
			maxAmount = asDecimal(info[4])
		}

		markets[pair] = &core.MarketInfo{
			Pair:           pair,
			Coin1:          coin1,
			Coin2:          coin2,
			Coin1Decimals:  amountDecimals,
			Coin2Decimals:  priceDecimals,
			Coin1MinAmount: minAmount,
			Coin1MaxAmount: maxAmount,
		}
	}
	return markets, nil
}

// mapError converts transport-level failures into standardized sentinels,
// parsing the venue error payload when one is present.
func (e *Exchange) mapError(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		mapped := parseError(apiErr.Body)
		return fmt.Errorf("%w: %s", mapped, strings.TrimSpace(string(apiErr.Body)))
	}
	return err
}
